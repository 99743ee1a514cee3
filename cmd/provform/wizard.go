package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalambet/provform/internal/catalog"
	"github.com/kalambet/provform/internal/config"
	"github.com/kalambet/provform/internal/notify"
	"github.com/kalambet/provform/internal/profile"
	"github.com/kalambet/provform/internal/wizard"
)

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Fill in a provider profile interactively",
	Long: `Walks through the three profile steps in the terminal. Progress is saved
as a draft after every step, so an interrupted run picks up where it stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		picture, _ := cmd.Flags().GetString("picture")
		bioPDF, _ := cmd.Flags().GetString("bio-pdf")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		ctx := cmd.Context()
		b, err := openBackends(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}

		mgr := profile.NewManager(b.kv)
		session, err := mgr.Restore(ctx, profile.WithNotifier(notify.NewQueueNotifier(b.jobs)))
		if err != nil {
			return fmt.Errorf("restoring draft: %w", err)
		}

		w := wizard.New(wizard.NewSurveyDriver(), mgr, session, wizard.Options{
			Catalog:     cat,
			PicturePath: picture,
			BioPDFPath:  bioPDF,
		})
		saved, err := w.Run(ctx)
		if errors.Is(err, wizard.ErrAborted) {
			printWarning("Stopped. Your answers are saved as a draft; run `provform wizard` to continue.")
			return nil
		}
		if err != nil {
			return err
		}

		printSuccess("Saved profile %s", saved.ID)
		printStatus("Summary", "%s", profile.Summarize(saved.Record))
		return nil
	},
}

func init() {
	wizardCmd.Flags().String("picture", "", "image file to use as the profile picture")
	wizardCmd.Flags().String("bio-pdf", "", "PDF to extract the bio from")
}
