package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shivnayan54/studyvibe/internal/config"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "studyvibectl",
		Short: "Служебные команды StudyVibe",
		Long: `studyvibectl управляет каталогом StudyVibe вне HTTP-сервера.

Настройки читаются из тех же переменных окружения SV_*, что и у сервера,
и из файла .env, если он есть.`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if envFile == "" {
				return config.LoadDotEnv()
			}
			return config.LoadDotEnv(envFile)
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "файл с переменными окружения (по умолчанию .env)")

	cmd.AddCommand(
		newMigrateCmd(),
		newImportCmd(),
		newNormalizeLinkCmd(),
		newHashPasswordCmd(),
	)

	return cmd
}

// loadConfig читает конфигурацию и создаёт логгер для команд, работающих с БД.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("загрузка конфигурации: %w", err)
	}
	return cfg, config.SetupLogger(cfg), nil
}

func printError(err error) {
	_, _ = errorColor.Fprint(os.Stderr, "Ошибка: ")
	fmt.Fprintln(os.Stderr, err)
}
