package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/app"
	"github.com/spigell/hirewire/internal/identity"
	"github.com/spigell/hirewire/internal/mutation"
	"github.com/spigell/hirewire/internal/records"
	"github.com/spigell/hirewire/internal/router"
)

const (
	PromptBrowse       = "Browse listings"
	PromptApplications = "My applications"
	PromptReviewCV     = "Review my CV"
	PromptPostListing  = "Post a listing"
	PromptManage       = "Manage applications"
	PromptBuyCredits   = "Buy listing credits"
	PromptSignIn       = "Sign in"
	PromptSignUp       = "Sign up"
	PromptSignOut      = "Sign out"
	PromptHome         = "Home"
	PromptQuit         = "Quit"
	PromptBack         = "back"
	PromptApply        = "Apply"
	PromptAnalyze      = "Analyze my match"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive hirewire client",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090. Default is unset.")
}

// session is one interactive run.
type session struct {
	rt  *runtime
	app *app.App
	out io.Writer
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	rt := bootstrap(ctx)
	defer rt.Close()

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		srv := serveMetrics(rt.logger, addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	s := &session{rt: rt, app: rt.app, out: cmd.OutOrStdout()}

	unsubscribe := s.app.Notices().Subscribe(noticePrinter(s.out))
	defer unsubscribe()

	if err := s.app.Refresh(ctx); err != nil {
		rt.logger.Warn("initial refresh failed", zap.Error(err))
	}

	for {
		menu := promptui.Select{
			Label: s.label(),
			Items: s.menu(),
			Size:  12,
		}

		_, action, err := menu.Run()
		if err != nil {
			rt.logger.Info("exiting", zap.Error(err))
			return
		}

		if err := s.handle(ctx, action); err != nil {
			if errors.Is(err, errExit) {
				rt.logger.Info("exiting", zap.String("reason", "quit selected"))
				return
			}
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			rt.logger.Warn("action failed", zap.String("action", action), zap.Error(err))
		}
	}
}

func serveMetrics(log *zap.Logger, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func (s *session) label() string {
	id := s.app.Identity()
	if id.IsGuest() {
		return fmt.Sprintf("[%s] Guest", s.app.View())
	}
	return fmt.Sprintf("[%s] %s (%s)", s.app.View(), id.Name, id.Role)
}

func (s *session) menu() []string {
	id := s.app.Identity()
	if id.IsGuest() {
		return []string{PromptBrowse, PromptSignIn, PromptSignUp, PromptHome, PromptQuit}
	}

	items := []string{PromptBrowse}
	if id.Role == identity.RoleEmployer || id.Admin() {
		items = append(items, PromptPostListing, PromptManage, PromptBuyCredits)
	} else {
		items = append(items, PromptApplications, PromptReviewCV)
	}
	return append(items, PromptSignOut, PromptHome, PromptQuit)
}

func (s *session) handle(ctx context.Context, action string) error {
	switch action {
	case PromptBrowse:
		return s.browse(ctx)
	case PromptApplications:
		s.showApplications()
		return nil
	case PromptReviewCV:
		return s.reviewCV(ctx)
	case PromptPostListing:
		return s.postListing(ctx)
	case PromptManage:
		return s.manage(ctx)
	case PromptBuyCredits:
		return s.buyCredits()
	case PromptSignIn:
		return s.signIn(ctx)
	case PromptSignUp:
		return s.signUp(ctx)
	case PromptSignOut:
		_ = s.app.SignOut(ctx)
		return nil
	case PromptHome:
		s.app.GoHome(ctx)
		return nil
	case PromptQuit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func (s *session) browse(ctx context.Context) error {
	query, err := ask("Search (empty for all)", "", nil)
	if err != nil {
		return err
	}

	s.app.Navigate(router.ViewListings, router.IntentNone)
	if err := s.app.Refresh(ctx); err != nil {
		return err
	}

	result, err := s.app.BrowseListings(ctx, s.rt.browseConfig(query, ""))
	if err != nil {
		return err
	}
	if len(result.Listings) == 0 {
		fmt.Fprintln(s.out, "No listings found.")
		return nil
	}
	printListings(s.out, result.Listings, result.Assessments)

	for {
		items := make([]string, 0, len(result.Listings)+1)
		for _, l := range result.Listings {
			items = append(items, fmt.Sprintf("%s %s / %s / %s", l.ID, l.Title, l.Company, l.Location))
		}

		listingPrompt := promptui.Select{
			Label: "Choose a listing and press ENTER",
			Items: append(items, PromptBack),
			Size:  12,
		}
		_, selected, err := listingPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		if err := s.listing(ctx, strings.Split(selected, " ")[0]); err != nil {
			return err
		}
	}
}

func (s *session) listing(ctx context.Context, listingID string) error {
	listing, ok := s.app.Listing(listingID)
	if !ok {
		return fmt.Errorf("there is no such listing id %s", listingID)
	}

	s.app.Navigate(router.ViewListing, router.IntentNone)
	fmt.Fprintf(s.out, "\n%s at %s (%s)\n%s\n%s\n\n", listing.Title, listing.Company, listing.Location, listing.Compensation, listing.Description)
	if m, ok := s.app.Match(listingID); ok {
		printMatch(s.out, m)
	}

	actions := promptui.Select{
		Label: listing.Title,
		Items: []string{PromptApply, PromptAnalyze, PromptBack},
	}
	_, action, err := actions.Run()
	if err != nil {
		return err
	}

	switch action {
	case PromptApply:
		return s.apply(ctx, listing)
	case PromptAnalyze:
		analysis, err := s.app.AnalyzeMatch(ctx, listingID)
		if err != nil {
			return nil
		}
		printMatch(s.out, analysis)
	}
	return nil
}

func (s *session) apply(ctx context.Context, listing records.Listing) error {
	video, err := ask("Pitch video reference (optional, see `hirewire pitch`)", "", nil)
	if err != nil {
		return err
	}

	in := app.ApplyInput{ListingID: listing.ID, VideoRef: video}
	pending := s.app.Apply(in)

	if pending == nil && s.app.View() == router.ViewAssessment {
		fmt.Fprintf(s.out, "Complete the assessment first: %s\n", listing.AptitudeTestRef)
		raw, err := ask("Assessment score", "", validateInt)
		if err != nil {
			return err
		}
		score, _ := strconv.Atoi(raw)
		in.TestScore = &score
		pending = s.app.Apply(in)
	}

	return wait(ctx, pending)
}

func (s *session) showApplications() {
	s.app.Navigate(router.ViewSeeker, router.IntentDashboard)

	entries := s.app.ApplicationEntries()
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "No applications yet.")
		return
	}
	printApplications(s.out, entries, s.listingTitles())
}

func (s *session) reviewCV(ctx context.Context) error {
	if d := s.app.Navigate(router.ViewCVReview, router.IntentReviewCV); !d.Allowed {
		return nil
	}

	path, err := ask("Path to your CV (plain text)", "", nil)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return fmt.Errorf("read cv: %w", err)
	}

	review, err := s.app.ReviewCV(ctx, string(data))
	if err != nil {
		return nil
	}
	printReview(s.out, review)
	return nil
}

func (s *session) postListing(ctx context.Context) error {
	if d := s.app.Navigate(router.ViewPostListing, router.IntentPost); !d.Allowed {
		return nil
	}

	in := app.ListingInput{}
	fields := []struct {
		label    string
		target   *string
		required bool
	}{
		{"Title", &in.Title, true},
		{"Company", &in.Company, true},
		{"Location", &in.Location, false},
		{"Compensation", &in.Compensation, false},
		{"Description", &in.Description, false},
		{"Aptitude test link (optional)", &in.AptitudeTestRef, false},
	}
	for _, f := range fields {
		var validate promptui.ValidateFunc
		if f.required {
			validate = validateRequired
		}
		value, err := ask(f.label, "", validate)
		if err != nil {
			return err
		}
		*f.target = value
	}

	tiers := make([]string, 0, len(records.Tiers))
	for _, t := range records.Tiers {
		tiers = append(tiers, string(t))
	}
	tierPrompt := promptui.Select{Label: "Tier", Items: tiers}
	_, tier, err := tierPrompt.Run()
	if err != nil {
		return err
	}
	in.Tier = tier

	return wait(ctx, s.app.PostListing(in))
}

func (s *session) manage(ctx context.Context) error {
	if d := s.app.Navigate(router.ViewEmployer, router.IntentDashboard); !d.Allowed {
		return nil
	}
	if err := s.app.Refresh(ctx); err != nil {
		return err
	}

	entries := s.app.ApplicationEntries()
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "No applications for your listings yet.")
		return nil
	}
	titles := s.listingTitles()
	printApplications(s.out, entries, titles)

	items := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		items = append(items, fmt.Sprintf("%s %s / %s", e.Value.ID, titles[e.Value.ListingID], e.Value.Status))
	}
	appPrompt := promptui.Select{Label: "Choose an application", Items: append(items, PromptBack), Size: 12}
	_, selected, err := appPrompt.Run()
	if err != nil || selected == PromptBack {
		return err
	}

	statuses := []string{
		string(records.StatusReviewing),
		string(records.StatusInterview),
		string(records.StatusRejected),
		string(records.StatusHired),
		PromptBack,
	}
	statusPrompt := promptui.Select{Label: "New status", Items: statuses}
	_, status, err := statusPrompt.Run()
	if err != nil || status == PromptBack {
		return err
	}

	return wait(ctx, s.app.UpdateApplicationStatus(strings.Split(selected, " ")[0], records.ApplicationStatus(status)))
}

func (s *session) buyCredits() error {
	s.app.Navigate(router.ViewPricing, router.IntentPurchase)

	tiers := make([]string, 0, len(records.Tiers))
	for _, t := range records.Tiers {
		tiers = append(tiers, string(t))
	}
	tierPrompt := promptui.Select{Label: "Tier", Items: tiers}
	_, tier, err := tierPrompt.Run()
	if err != nil {
		return err
	}

	rawQty, err := ask("Quantity", "1", validatePositive)
	if err != nil {
		return err
	}
	rawAmount, err := ask("Amount paid, in cents", "0", validateInt)
	if err != nil {
		return err
	}

	qty, _ := strconv.Atoi(rawQty)
	amount, _ := strconv.ParseInt(rawAmount, 10, 64)
	if _, err := s.app.PurchaseCredits(tier, qty, amount); err != nil {
		return err
	}

	printBalances(s.out, s.app.Ledger().Balances())
	return nil
}

func (s *session) signIn(ctx context.Context) error {
	s.app.Navigate(router.ViewAuth, router.IntentNone)

	email, err := ask("Email", s.rt.config.Backend.Email, validateRequired)
	if err != nil {
		return err
	}
	password, err := askSecret("Password")
	if err != nil {
		return err
	}

	if err := s.app.SignIn(ctx, email, password); err != nil {
		return nil
	}
	return s.app.Refresh(ctx)
}

func (s *session) signUp(ctx context.Context) error {
	s.app.Navigate(router.ViewAuth, router.IntentNone)

	in := app.SignUpInput{}
	var err error
	if in.Email, err = ask("Email", "", validateRequired); err != nil {
		return err
	}
	if in.Password, err = askSecret("Password"); err != nil {
		return err
	}
	if in.Name, err = ask("Full name", "", nil); err != nil {
		return err
	}

	rolePrompt := promptui.Select{Label: "I am", Items: []string{string(identity.RoleSeeker), string(identity.RoleEmployer)}}
	_, role, err := rolePrompt.Run()
	if err != nil {
		return err
	}
	in.Role = identity.Role(role)

	if err := s.app.SignUp(ctx, in); err != nil {
		return nil
	}
	return s.app.Refresh(ctx)
}

func (s *session) listingTitles() map[string]string {
	titles := make(map[string]string)
	for _, l := range s.app.Listings() {
		titles[l.ID] = l.Title
	}
	return titles
}

// wait blocks until the remote half of a mutation settles. Failures are
// already posted as notices.
func wait(ctx context.Context, p *mutation.Pending) error {
	if p == nil {
		return nil
	}
	if err := p.Wait(ctx); err != nil && ctx.Err() != nil {
		return err
	}
	return nil
}

func ask(label, def string, validate promptui.ValidateFunc) (string, error) {
	p := promptui.Prompt{
		Label:    label,
		Default:  def,
		Validate: validate,
	}
	value, err := p.Run()
	return strings.TrimSpace(value), err
}

func askSecret(label string) (string, error) {
	p := promptui.Prompt{
		Label:    label,
		Mask:     '*',
		Validate: validateRequired,
	}
	return p.Run()
}

func validateRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func validateInt(s string) error {
	if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
		return errors.New("must be a number")
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return errors.New("must be a positive number")
	}
	return nil
}
