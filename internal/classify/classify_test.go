package classify

import "testing"

func TestClassifyRouteEmptyOrNoTools(t *testing.T) {
	if got := ClassifyRoute("", true); got.Route != RouteNoTool || got.Confidence != ConfidenceHigh {
		t.Fatalf("unexpected: %+v", got)
	}
	if got := ClassifyRoute("anything", false); got.Route != RouteNoTool || got.Confidence != ConfidenceHigh {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestClassifyRouteChatGreeting(t *testing.T) {
	got := ClassifyRoute("你好，今天天气怎么样？", true)
	if got.Route != RouteNoTool || got.Confidence != ConfidenceHigh {
		t.Fatalf("expected no-tool/high, got %+v", got)
	}
}

func TestClassifyRouteFilePath(t *testing.T) {
	got := ClassifyRoute("请帮我读取 src/index.ts 文件", true)
	if got.Route != RouteTool || got.Confidence != ConfidenceHigh {
		t.Fatalf("expected tool/high, got %+v", got)
	}
}

func TestClassifyRouteMultiStep(t *testing.T) {
	got := ClassifyRoute("先读取文件，然后分析代码结构，最后生成报告", true)
	if got.Route != RouteComplexTool {
		t.Fatalf("expected complex-tool, got %+v", got)
	}
}

func TestClassifyRouteLongTextDefaultsTool(t *testing.T) {
	long := ""
	for i := 0; i < 210; i++ {
		long += "a"
	}
	got := ClassifyRoute(long, true)
	if got.Route != RouteTool {
		t.Fatalf("expected tool for long text, got %+v", got)
	}
}

func TestRouteRequiresToolsAndTemperature(t *testing.T) {
	if RouteRequiresTools(RouteNoTool) {
		t.Fatal("no-tool should not require tools")
	}
	if !RouteRequiresTools(RouteTool) {
		t.Fatal("tool should require tools")
	}
	if GetTemperatureForRoute(RouteTool) != 0 {
		t.Fatal("expected temperature 0 for tool route")
	}
	if GetTemperatureForRoute(RouteNoTool) != 0.2 {
		t.Fatal("expected temperature 0.2 for no-tool route")
	}
}
