// Package wizard walks a provider through the profile form in the terminal.
package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/provform/internal/catalog"
	"github.com/kalambet/provform/internal/intake"
	"github.com/kalambet/provform/internal/profile"
)

// DraftSaver persists the draft between steps. Implemented by profile.Manager.
type DraftSaver interface {
	SaveDraft(ctx context.Context, r profile.Record) error
}

// Options configures a Wizard.
type Options struct {
	Catalog catalog.Catalog
	// PicturePath and BioPDFPath prefill the first step from files.
	PicturePath string
	BioPDFPath  string
}

type Wizard struct {
	driver  PromptDriver
	drafts  DraftSaver
	session *profile.Session
	opts    Options
	logger  *slog.Logger
}

func New(driver PromptDriver, drafts DraftSaver, session *profile.Session, opts Options) *Wizard {
	if len(opts.Catalog.Weekdays) == 0 {
		opts.Catalog = catalog.Default()
	}
	return &Wizard{
		driver:  driver,
		drafts:  drafts,
		session: session,
		opts:    opts,
		logger:  slog.Default(),
	}
}

const (
	actionNext   = "Next"
	actionSubmit = "Submit"
	actionBack   = "Back"
	actionEdit   = "Edit this step again"
	actionQuit   = "Save draft and quit"
)

// Run prompts for every step until the profile is submitted. The draft is
// saved after each step, so quitting or aborting loses nothing. Returns
// ErrAborted when the user quits.
func (w *Wizard) Run(ctx context.Context) (profile.SavedProfile, error) {
	if err := w.prefill(ctx); err != nil {
		return profile.SavedProfile{}, err
	}

	for {
		step := w.session.Step()
		if err := w.driver.Info(ctx, fmt.Sprintf("\nStep %d of %d: %s (%d%%)", step, profile.LastStep, step.Title(), step.Progress())); err != nil {
			return profile.SavedProfile{}, err
		}
		if err := w.showErrors(ctx); err != nil {
			return profile.SavedProfile{}, err
		}
		if err := w.askStep(ctx, step); err != nil {
			return profile.SavedProfile{}, err
		}
		if err := w.drafts.SaveDraft(ctx, w.session.Record()); err != nil {
			return profile.SavedProfile{}, fmt.Errorf("saving draft: %w", err)
		}

		action, err := w.chooseAction(ctx, step)
		if err != nil {
			return profile.SavedProfile{}, err
		}

		switch action {
		case actionQuit:
			return profile.SavedProfile{}, ErrAborted
		case actionBack:
			w.session.Previous()
		case actionNext:
			if _, err := w.session.Next(); err != nil {
				return profile.SavedProfile{}, err
			}
		case actionSubmit:
			saved, ok, err := w.session.Submit(ctx)
			if err != nil {
				return profile.SavedProfile{}, err
			}
			if ok {
				if err := w.driver.Info(ctx, fmt.Sprintf("Profile saved: %s", saved.ID)); err != nil {
					return saved, fmt.Errorf("profile %s saved, but reporting it failed: %w", saved.ID, err)
				}
				return saved, nil
			}
		}
	}
}

// prefill loads the picture and bio from files given on the command line.
func (w *Wizard) prefill(ctx context.Context) error {
	if w.opts.PicturePath != "" {
		uri, err := intake.PictureFromFile(w.opts.PicturePath)
		if err != nil {
			return err
		}
		if err := w.session.SetField(profile.FieldProfilePicture, uri); err != nil {
			return err
		}
	}
	if w.opts.BioPDFPath != "" {
		bio, err := intake.BioFromPDF(w.opts.BioPDFPath)
		if err != nil {
			return err
		}
		if err := w.session.SetField(profile.FieldBio, bio); err != nil {
			return err
		}
		w.logger.Debug("bio prefilled from pdf", "path", w.opts.BioPDFPath, "chars", len(bio))
	}
	return nil
}

func (w *Wizard) showErrors(ctx context.Context) error {
	errs := w.session.Errors()
	for _, field := range profile.StepFields(w.session.Step()) {
		if msg, ok := errs[field]; ok {
			if err := w.driver.Info(ctx, fmt.Sprintf("  ! %s", msg)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Wizard) chooseAction(ctx context.Context, step profile.Step) (string, error) {
	options := []string{actionNext}
	if step == profile.LastStep {
		options = []string{actionSubmit}
	}
	if step > profile.FirstStep {
		options = append(options, actionBack)
	}
	options = append(options, actionEdit, actionQuit)

	idx, err := w.driver.Select(ctx, SelectConfig{Message: "What next?", Options: options})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(options) {
		return actionEdit, nil
	}
	return options[idx], nil
}

func (w *Wizard) askStep(ctx context.Context, step profile.Step) error {
	r := w.session.Record()
	switch step {
	case profile.StepBasicInfo:
		if err := w.askText(ctx, profile.FieldName, "Full name", r.Name); err != nil {
			return err
		}
		bio, err := w.driver.TextArea(ctx, TextAreaConfig{Message: "Bio", Default: r.Bio})
		if err != nil {
			return err
		}
		if err := w.session.SetField(profile.FieldBio, intake.CleanText(bio)); err != nil {
			return err
		}
		return w.askPicture(ctx, r.ProfilePicture)

	case profile.StepExpertise:
		if err := w.askMulti(ctx, profile.FieldSpecializations, "Specializations", w.opts.Catalog.Specializations, r.Specializations); err != nil {
			return err
		}
		if err := w.askMulti(ctx, profile.FieldServices, "Services offered", w.opts.Catalog.Services, r.Services); err != nil {
			return err
		}
		return w.askText(ctx, profile.FieldYearsOfExperience, "Years of experience", string(r.YearsOfExperience))

	case profile.StepContact:
		if err := w.askText(ctx, profile.FieldEmail, "Email", r.Email); err != nil {
			return err
		}
		if err := w.askText(ctx, profile.FieldPhone, "Phone", r.Phone); err != nil {
			return err
		}
		days := make([]string, len(w.opts.Catalog.Weekdays))
		for i, d := range w.opts.Catalog.Weekdays {
			days[i] = string(d)
		}
		current := make([]string, len(r.WorkingHours))
		for i, d := range r.WorkingHours {
			current[i] = string(d)
		}
		return w.askMulti(ctx, profile.FieldWorkingHours, "Working days", days, current)
	}
	return fmt.Errorf("no prompts for step %d", step)
}

func (w *Wizard) askText(ctx context.Context, field, message, current string) error {
	v, err := w.driver.Input(ctx, InputConfig{Message: message, Default: current})
	if err != nil {
		return err
	}
	if field == profile.FieldName {
		v = intake.CleanText(v)
	}
	return w.session.SetField(field, v)
}

// askMulti offers the catalog options plus any current values the catalog
// does not know, so a restored draft loses nothing.
func (w *Wizard) askMulti(ctx context.Context, field, message string, options, current []string) error {
	options = append([]string{}, options...)
	var defaults []int
	for _, c := range current {
		idx := indexOf(options, c)
		if idx < 0 {
			options = append(options, c)
			idx = len(options) - 1
		}
		defaults = append(defaults, idx)
	}

	picked, err := w.driver.MultiSelect(ctx, SelectConfig{
		Message:  message,
		Options:  options,
		Defaults: defaults,
		PageSize: 10,
	})
	if err != nil {
		return err
	}
	values := make([]string, 0, len(picked))
	for _, idx := range picked {
		if idx >= 0 && idx < len(options) {
			values = append(values, options[idx])
		}
	}
	return w.session.SetField(field, values)
}

func (w *Wizard) askPicture(ctx context.Context, current *string) error {
	help := "Path to a PNG, JPEG, GIF, WebP or SVG image under 5MB."
	if current != nil && *current != "" {
		help += " Leave empty to keep the current picture."
	}
	path, err := w.driver.Input(ctx, InputConfig{Message: "Profile picture file", Help: help})
	if err != nil {
		return err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	uri, err := intake.PictureFromFile(path)
	if err != nil {
		// Unreadable files are reported; the picture stays as it was.
		return w.driver.Info(ctx, fmt.Sprintf("  ! could not read %s: %v", path, err))
	}
	return w.session.SetField(profile.FieldProfilePicture, uri)
}
