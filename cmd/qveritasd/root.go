package main

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"QVeritas/internal/config"
	"QVeritas/pkg/logger"
)

const defaultConfigPath = "configs/qveritas.yaml"

// cliOptions 在子命令之间共享已加载的配置。
type cliOptions struct {
	configPath string
	seed       int64
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:          "qveritasd",
		Short:        "可复现的计算证明与签名审计服务",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"配置文件路径 (默认读取 $QVERITAS_CONFIG 或 "+defaultConfigPath+")")
	root.PersistentFlags().Int64Var(&opts.seed, "seed", -1, "覆盖 engine.seed，负数表示不覆盖")

	root.AddCommand(
		newServeCmd(opts),
		newProveCmd(opts),
		newComputeCmd(opts),
		newBenchCmd(opts),
		newDemoCmd(opts),
	)
	return root
}

// load 读取配置并初始化日志。未显式指定且默认文件不存在时使用内置默认值。
func (o *cliOptions) load(cmd *cobra.Command) error {
	path := o.configPath
	explicit := path != ""
	if !explicit {
		if env := strings.TrimSpace(os.Getenv("QVERITAS_CONFIG")); env != "" {
			path, explicit = env, true
		} else {
			path = defaultConfigPath
		}
	}

	var cfg *config.Config
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg = config.Default(wd)
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if o.seed >= 0 {
		seed := o.seed
		cfg.Engine.Seed = &seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	o.cfg = cfg
	logger.Named("cli").Debug("配置已加载",
		"command", cmd.Name(),
		"config", filepath.Clean(path),
		"storage", cfg.Storage.Driver,
		"signing", cfg.Signing.Scheme,
	)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
