package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shivnayan54/studyvibe/internal/domain/link"
)

func newNormalizeLinkCmd() *cobra.Command {
	var idOnly bool

	cmd := &cobra.Command{
		Use:     "normalize-link URL...",
		Short:   "Привести ссылки Google Drive к прямой форме",
		Example: `  studyvibectl normalize-link "https://drive.google.com/file/d/abc123/view?usp=sharing"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, raw := range args {
				if !link.IsDriveLink(raw) {
					failed++
					_, _ = warnColor.Fprintf(out, "не ссылка Google Drive: %s\n", raw)
					continue
				}

				var (
					result string
					ok     bool
				)
				if idOnly {
					result, ok = link.FileID(raw)
				} else {
					result, ok = link.NormalizeShareableLink(raw)
				}
				if !ok {
					failed++
					_, _ = warnColor.Fprintf(out, "нераспознанная форма ссылки Drive: %s\n", raw)
					continue
				}
				fmt.Fprintln(out, result)
			}
			if failed > 0 {
				return fmt.Errorf("не распознано ссылок: %d из %d", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&idOnly, "id", false, "печатать только идентификатор файла")
	return cmd
}
