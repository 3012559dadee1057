package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/msgcode/internal/envelope"
	"github.com/nextlevelbuilder/msgcode/internal/procenv"
	"github.com/nextlevelbuilder/msgcode/internal/transport"
)

func fileCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "file",
		Short: "File-transfer commands",
	}
	c.AddCommand(fileSendCmd())
	return c
}

func fileSendCmd() *cobra.Command {
	var (
		path    string
		to      string
		caption string
		mime    string
		asJSON  bool
	)
	c := &cobra.Command{
		Use:   "send",
		Short: "Send a file through the chat transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFileSend(path, to, caption, mime, asJSON)
		},
	}
	c.Flags().StringVar(&path, "path", "", "local path of the file to send (required)")
	c.Flags().StringVar(&to, "to", "", "destination chat GUID (required)")
	c.Flags().StringVar(&caption, "caption", "", "optional caption")
	c.Flags().StringVar(&mime, "mime", "", "optional MIME type override")
	c.Flags().BoolVar(&asJSON, "json", false, "emit a schemaVersion:2 Envelope instead of plain text")
	return c
}

func runFileSend(path, to, caption, mime string, asJSON bool) error {
	b := envelope.New("file send")

	if path == "" || to == "" {
		b.AddError("--path and --to are required")
		return emitFileResult(b, transport.Response{OK: false, ErrorCode: "INVALID_ARGS", ErrorMessage: "--path and --to are required"}, asJSON)
	}

	cfg, err := procenv.Load()
	if err != nil {
		b.AddError(err.Error())
		return emitFileResult(b, transport.Response{OK: false, ErrorCode: "SEND_FAILED", ErrorMessage: err.Error()}, asJSON)
	}
	if cfg.TransportWSURL == "" {
		b.AddError("MSGCODE_TRANSPORT_WS_URL is not set")
		return emitFileResult(b, transport.Response{OK: false, ErrorCode: "SEND_FAILED", ErrorMessage: "MSGCODE_TRANSPORT_WS_URL is not set"}, asJSON)
	}

	ctx := context.Background()
	client, err := transport.DialRPC(ctx, cfg.TransportWSURL)
	if err != nil {
		b.AddError(err.Error())
		return emitFileResult(b, transport.Response{OK: false, ErrorCode: "SEND_FAILED", ErrorMessage: err.Error()}, asJSON)
	}

	resp := client.FileSend(to, path, caption, mime)
	if !resp.OK {
		b.AddError(fmt.Sprintf("%s: %s", resp.ErrorCode, resp.ErrorMessage))
	}
	return emitFileResult(b, resp, asJSON)
}

func emitFileResult(b *envelope.Builder, resp transport.Response, asJSON bool) error {
	b.SetData(resp)
	env := b.Build()
	if !asJSON {
		if resp.OK {
			fmt.Println("sent")
		} else {
			fmt.Printf("failed: %s: %s\n", resp.ErrorCode, resp.ErrorMessage)
		}
		if env.ExitCode != 0 {
			os.Exit(env.ExitCode)
		}
		return nil
	}
	out, err := env.MarshalIndent()
	if err != nil {
		return fmt.Errorf("file send: marshal envelope: %w", err)
	}
	fmt.Println(string(out))
	if env.ExitCode != 0 {
		os.Exit(env.ExitCode)
	}
	return nil
}
