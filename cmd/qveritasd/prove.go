package main

import (
	"encoding/base64"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	xerrors "QVeritas/internal/errors"
	"QVeritas/internal/veritas"
)

func newProveCmd(opts *cliOptions) *cobra.Command {
	var (
		computationType string
		encoding        string
		file            string
		export          bool
	)
	cmd := &cobra.Command{
		Use:   "prove [payload]",
		Short: "对载荷执行计算、签名并生成证明",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := readPayload(cmd.InOrStdin(), args, file, encoding)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, opts.cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.orchestrator.VerifyAndProve(ctx, data, computationType)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !export {
				return nil
			}
			location, _, err := a.exporter.Export(ctx)
			if err != nil {
				return err
			}
			cmd.PrintErrln("审计报告已导出:", location)
			return nil
		},
	}
	cmd.Flags().StringVarP(&computationType, "type", "t", veritas.ComputationHash, "计算类型：hash 或支持的数值运算")
	cmd.Flags().StringVar(&encoding, "encoding", "utf8", "载荷编码：utf8、hex 或 base64")
	cmd.Flags().StringVarP(&file, "file", "f", "", "从文件读取载荷，- 表示标准输入")
	cmd.Flags().BoolVar(&export, "export", false, "完成后导出审计报告")
	return cmd
}

// readPayload 从参数或文件读取载荷并按 encoding 解码。
func readPayload(stdin io.Reader, args []string, file, encoding string) ([]byte, error) {
	var raw []byte
	switch {
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "读取标准输入失败")
		}
		raw = data
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "读取载荷文件失败")
		}
		raw = data
	case len(args) == 1:
		raw = []byte(args[0])
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "需要提供载荷参数或 --file")
	}

	switch strings.ToLower(encoding) {
	case "", "utf8", "utf-8":
		return raw, nil
	case "hex":
		data, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "载荷不是合法的十六进制")
		}
		return data, nil
	case "base64":
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "载荷不是合法的 base64")
		}
		return data, nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "不支持的编码: "+encoding)
	}
}
