// Точка входа studyvibectl — служебные команды StudyVibe:
// миграции, импорт каталога из YAML, нормализация ссылок, хеш пароля.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		printError(err)
		stop()
		os.Exit(1)
	}
}
