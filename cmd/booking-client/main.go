package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medibook/medibook/internal/config"
	"github.com/medibook/medibook/internal/domain/bookinglist"
	"github.com/medibook/medibook/internal/domain/calendar"
	"github.com/medibook/medibook/internal/domain/policy"
	"github.com/medibook/medibook/internal/platform/notify"
	"github.com/medibook/medibook/internal/platform/restapi"
	"github.com/medibook/medibook/internal/platform/session"
)

// app bundles the wired-up components behind every subcommand.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	tokens  *session.TokenStore
	api     *restapi.Client
	session *session.Store
	bus     *notify.Bus
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	}

	tokens, err := session.NewTokenStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	api := restapi.NewClient(cfg.APIBaseURL, tokens, logger, restapi.WithTimeout(cfg.HTTPTimeout()))
	store := session.NewStore(tokens, api, logger)

	bus := notify.NewBus()
	bus.Subscribe(notify.Listener{
		Added: func(n notify.Notification) {
			switch n.Type {
			case notify.TypeError:
				fmt.Fprintf(os.Stderr, "error: %s\n", n.Message)
			case notify.TypeWarning:
				fmt.Fprintf(os.Stderr, "warning: %s\n", n.Message)
			default:
				fmt.Println(n.Message)
			}
		},
	})

	return &app{cfg: cfg, logger: logger, tokens: tokens, api: api, session: store, bus: bus}, nil
}

func (a *app) presenter() *calendar.Presenter {
	return calendar.NewPresenter(a.api, a.session, a.bus, a.logger)
}

func main() {
	var a *app

	rootCmd := &cobra.Command{
		Use:   "booking-client",
		Short: "Appointment booking client",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp()
			if err != nil {
				return err
			}
			a.session.Start(cmd.Context())
			return nil
		},
	}

	rootCmd.AddCommand(loginCmd(&a))
	rootCmd.AddCommand(registerCmd(&a))
	rootCmd.AddCommand(logoutCmd(&a))
	rootCmd.AddCommand(whoamiCmd(&a))
	rootCmd.AddCommand(calendarCmd(&a))
	rootCmd.AddCommand(bookCmd(&a))
	rootCmd.AddCommand(bookingsCmd(&a))
	rootCmd.AddCommand(slotsCmd(&a))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", restapi.Detail(err))
		os.Exit(1)
	}
}

func loginCmd(a **app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := (*a).session.Login(ctx, username, password); err != nil {
				return err
			}
			user, err := (*a).session.RefreshProfile(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("logged in as %s\n", user.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func registerCmd(a **app) *cobra.Command {
	req := restapi.RegisterRequest{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := (*a).session.Register(ctx, req); err != nil {
				return err
			}
			user, err := (*a).session.RefreshProfile(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("registered and logged in as %s\n", user.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "account username")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	return cmd
}

func logoutCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			(*a).session.Logout()
			fmt.Println("logged out")
			return nil
		},
	}
}

func whoamiCmd(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := (*a).session
			if !s.IsAuthenticated() {
				fmt.Println("not logged in")
				return nil
			}
			user, err := s.RefreshProfile(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("user: %s <%s>\n", user.DisplayName(), user.Email)
			fmt.Printf("doctor: %v\n", s.IsDoctor(ctx))
			fmt.Printf("administrator: %v\n", s.IsAdministrator(ctx))
			if exp, ok := (*a).tokens.AccessTokenExpiry(); ok && time.Now().After(exp) {
				fmt.Println("note: access token is expired; the next call may log you out")
			}
			return nil
		},
	}
}

func calendarCmd(a **app) *cobra.Command {
	var from string
	var days int
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show the availability calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start, end, err := resolveRange(from, days, (*a).cfg.CalendarDays)
			if err != nil {
				return err
			}

			p := (*a).presenter()
			defer p.Close()
			events, err := p.LoadRange(ctx, start, end)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("no slots in range")
				return nil
			}
			for _, e := range events {
				fmt.Printf("%6d  %s  %s\n", e.SlotID, e.Start.Local().Format("Mon 2006-01-02 15:04"), e.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "range start, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&days, "days", 0, "days to show (default from config)")
	return cmd
}

func bookCmd(a **app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "book <slot-id>",
		Short: "Book a free slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			slotID, err := parseID(args[0])
			if err != nil {
				return err
			}

			p := (*a).presenter()
			defer p.Close()
			if _, err := p.LoadRange(ctx, time.Time{}, time.Time{}); err != nil {
				return err
			}

			decision, err := p.HandleEventClick(ctx, slotID)
			if err != nil {
				return err
			}
			switch decision.Action {
			case policy.PromptLogin:
				return fmt.Errorf("you must log in first (booking-client login)")
			case policy.OfferBook:
				return p.SubmitBooking(ctx, reason)
			case policy.ViewOnly:
				if decision.Reason != "" {
					fmt.Println(decision.Reason)
				}
				return nil
			case policy.OfferEdit:
				return fmt.Errorf("slot %d is already booked; use 'bookings edit' to change your booking", slotID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason for the visit")
	cmd.MarkFlagRequired("reason")
	return cmd
}

func bookingsCmd(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Work with bookings",
	}

	var page int
	var all bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List your bookings (or all, as administrator)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			view := (*a).bookingsView(all)
			if err := view.Refresh(ctx); err != nil {
				return err
			}
			view.SetPage(page)
			items, total := view.Page()
			if len(items) == 0 {
				fmt.Println("no bookings")
				return nil
			}
			for _, b := range items {
				start := "-"
				if t := b.SlotStart(); !t.IsZero() {
					start = t.Local().Format("Mon 2006-01-02 15:04")
				}
				fmt.Printf("%6d  %-20s  %-10s  %-20s  %s\n", b.ID, start, b.Status.Label(), b.BookerName(), b.Reason)
			}
			fmt.Printf("page %d of %d\n", view.CurrentPage(), total)
			return nil
		},
	}
	listCmd.Flags().IntVar(&page, "page", 1, "page to show")
	listCmd.Flags().BoolVar(&all, "all", false, "show all bookings (administrator only)")

	var reason string
	editCmd := &cobra.Command{
		Use:   "edit <booking-id>",
		Short: "Change a booking's reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			view := (*a).bookingsView(false)
			if err := view.Refresh(ctx); err != nil {
				return err
			}
			if err := view.BeginEdit(id); err != nil {
				return err
			}
			return view.CommitEdit(ctx, id, reason)
		},
	}
	editCmd.Flags().StringVar(&reason, "reason", "", "new reason")
	editCmd.MarkFlagRequired("reason")

	cancelCmd := &cobra.Command{
		Use:   "cancel <booking-id>",
		Short: "Cancel a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			view := (*a).bookingsView(false)
			if err := view.Refresh(ctx); err != nil {
				return err
			}
			return view.Cancel(ctx, id)
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(editCmd)
	cmd.AddCommand(cancelCmd)
	return cmd
}

func slotsCmd(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Manage availability slots (doctor)",
	}

	addCmd := &cobra.Command{
		Use:   "add <start>",
		Short: "Add an availability slot (RFC 3339 start time)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start, err := time.Parse(time.RFC3339, args[0])
			if err != nil {
				return fmt.Errorf("invalid start time %q, expected RFC 3339: %w", args[0], err)
			}

			p := (*a).presenter()
			defer p.Close()
			decision := p.HandleRangeSelect(ctx, start)
			if decision.Action != policy.OfferCreateSlot {
				// Non-doctors get silence rather than a role reveal.
				(*a).logger.Debug().Msg("range select ignored")
				return nil
			}
			return p.SubmitAddSlot(ctx)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <slot-id>",
		Short: "Delete an availability slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := (*a).api.DeleteSlot(ctx, id); err != nil {
				return err
			}
			fmt.Println("slot deleted")
			return nil
		},
	}

	cmd.AddCommand(addCmd)
	cmd.AddCommand(deleteCmd)
	return cmd
}

func (a *app) bookingsView(all bool) *bookinglist.View {
	fetch := a.api.MyBookings
	if all {
		fetch = a.api.AllBookings
	}
	return bookinglist.NewView(a.api, fetch, a.bus, a.logger, a.cfg.PageSize)
}

func resolveRange(from string, days, defaultDays int) (time.Time, time.Time, error) {
	start := time.Now().Truncate(24 * time.Hour)
	if from != "" {
		parsed, err := time.ParseInLocation("2006-01-02", from, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date %q, expected YYYY-MM-DD: %w", from, err)
		}
		start = parsed
	}
	if days <= 0 {
		days = defaultDays
	}
	return start, start.AddDate(0, 0, days), nil
}

func parseID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
