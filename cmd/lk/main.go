package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"linkup/internal/app"
	"linkup/internal/bridge"
	"linkup/internal/client"
	"linkup/internal/config"
	"linkup/internal/db"
	"linkup/internal/domain"
	"linkup/internal/inventory"
	"linkup/internal/migrate"
	"linkup/internal/requests"
	"linkup/internal/server"
	"linkup/internal/store"
	"linkup/internal/trade"
)

var rootCmd = &cobra.Command{
	Use:   "lk",
	Short: "Linkup CLI",
	Long: `Linkup trades inventory items and points between users and organizes meetings.
Core concepts:
- Inventory: cases, keys, and tickets you own; identical items stack in views.
- Trade: ask another user for some of their items and/or points; they approve or reject.
- Meeting: a gathering you can join directly, request to join, or get invited to.
- Requests: pending joins and invites waiting on someone's accept/decline.
Mutations are optimistic: lists update immediately and reconcile with the server.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("LINKUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("base-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().String("token", "", "API bearer token (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("base-url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(meCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(friendsCmd())
	rootCmd.AddCommand(inventoryCmd())
	rootCmd.AddCommand(tradeCmd())
	rootCmd.AddCommand(tradesCmd())
	rootCmd.AddCommand(requestsCmd())
	rootCmd.AddCommand(meetsCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default linkup.yml in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the development API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			secret := cfg.Server.JWTSecret
			if env := os.Getenv("LINKUP_JWT_SECRET"); env != "" {
				secret = env
			}
			if secret == "" {
				return fmt.Errorf("jwt secret required; set server.jwt_secret or LINKUP_JWT_SECRET")
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			s := store.New(conn)
			if seed {
				if err := seedFixtures(cmd.Context(), s); err != nil {
					return err
				}
			}
			handler, err := server.New(server.Config{Store: s, BasePath: basePath, Auth: server.AuthConfig{JWTSecret: secret}})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Linkup API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path")
	cmd.Flags().BoolVar(&seed, "seed", false, "seed demo users and catalogs if the database is empty")
	return cmd
}

// seedFixtures loads a small demo dataset so the wizard has something to
// trade. Runs only against an empty users table.
func seedFixtures(ctx context.Context, s store.Store) error {
	existing, err := s.ListUsers(ctx, nil)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	alice, err := s.InsertUser(ctx, domain.User{Name: "Alice", Surname: "Ivanova", Login: "alice", Balance: 250})
	if err != nil {
		return err
	}
	bob, err := s.InsertUser(ctx, domain.User{Name: "Bob", Surname: "Petrov", Login: "bob", Balance: 120})
	if err != nil {
		return err
	}
	carol, err := s.InsertUser(ctx, domain.User{Name: "Carol", Surname: "Smirnova", Login: "carol", Balance: 80})
	if err != nil {
		return err
	}
	if err := s.AddFriend(ctx, alice.ID, bob.ID); err != nil {
		return err
	}
	winter, err := s.InsertCase(ctx, domain.Case{Name: "Winter Case", Price: 200})
	if err != nil {
		return err
	}
	if err := s.InsertEvent(ctx, domain.EventInfo{ID: 1, Category: "concert", Name: "Jazz Night", Price: 120}); err != nil {
		return err
	}
	if err := s.InsertEvent(ctx, domain.EventInfo{ID: 2, Category: "quest", Name: "Escape Room", Price: 90}); err != nil {
		return err
	}
	entries := []domain.InventoryEntry{
		{OwnerID: bob.ID, Type: domain.ItemCase, CaseID: winter.ID},
		{OwnerID: bob.ID, Type: domain.ItemCase, CaseID: winter.ID},
		{OwnerID: bob.ID, Type: domain.ItemKey, CaseID: winter.ID},
		{OwnerID: bob.ID, Type: domain.ItemTicket, EventID: 1, EventType: "concert", Name: "Jazz Night"},
		{OwnerID: carol.ID, Type: domain.ItemTicket, EventID: 2, EventType: "quest", Name: "Escape Room"},
		{OwnerID: carol.ID, Type: domain.ItemTicket, EventID: 2, EventType: "quest", Name: "Escape Room"},
		{OwnerID: alice.ID, Type: domain.ItemKey, CaseID: winter.ID},
	}
	for _, e := range entries {
		if _, err := s.InsertEntry(ctx, e); err != nil {
			return err
		}
	}
	fmt.Println("Seeded demo users: alice (1), bob (2), carol (3)")
	return nil
}

func loginCmd() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Mint a dev token and store it in linkup.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			if override := viper.GetString("base-url"); override != "" {
				cfg.API.BaseURL = override
			}
			c := client.New(cfg.API.BaseURL)
			token, err := c.DevLogin(cmd.Context(), userID)
			if err != nil {
				return err
			}
			cfg.API.Token = token
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(config.Path(workspace), data, 0o600); err != nil {
				return err
			}
			fmt.Printf("Logged in as user %d; token saved to %s\n", userID, config.Path(workspace))
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id to log in as")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the authenticated user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				return printJSONOrTable(sess.Me)
			})
		},
	}
}

func usersCmd() *cobra.Command {
	users := &cobra.Command{Use: "users", Short: "Browse users"}
	users.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				all, err := sess.Users(ctx)
				if err != nil {
					return err
				}
				return printUsers(all)
			})
		},
	})
	users.AddCommand(&cobra.Command{
		Use:   "search <query>",
		Short: "Search users the way the trade wizard does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				friends, err := sess.Friends(ctx)
				if err != nil {
					return err
				}
				all, err := sess.Users(ctx)
				if err != nil {
					return err
				}
				matches := trade.SearchUsers(args[0], friends, all, sess.Me.ID)
				return printUsers(matches)
			})
		},
	})
	return users
}

func friendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "friends",
		Short: "List your friends",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				friends, err := sess.Friends(ctx)
				if err != nil {
					return err
				}
				return printUsers(friends)
			})
		},
	}
}

func inventoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory [user-id]",
		Short: "Show an inventory, stacked by item identity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				userID := sess.Me.ID
				if len(args) == 1 {
					id, err := strconv.ParseInt(args[0], 10, 64)
					if err != nil {
						return fmt.Errorf("invalid user id %q", args[0])
					}
					userID = id
				}
				groups, err := sess.GroupedInventory(ctx, userID)
				if err != nil {
					return err
				}
				catalogs, err := sess.RefreshCatalogs(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(groups)
				}
				renderGroups(groups, catalogs, nil)
				return nil
			})
		},
	}
	return cmd
}

func tradesCmd() *cobra.Command {
	trades := &cobra.Command{Use: "trades", Short: "Manage your trades"}
	trades.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List trades involving you",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				items, err := sess.Trades(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "From", "To", "Items", "Points", "Status"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.FromUserID, t.ToUserID, len(t.ItemIDs), t.Points, t.Status})
				}
				tw.Render()
				return nil
			})
		},
	})
	trades.AddCommand(&cobra.Command{
		Use:   "approve <id>",
		Short: "Approve an incoming trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return settleTrade(cmd.Context(), args[0], true)
		},
	})
	trades.AddCommand(&cobra.Command{
		Use:   "reject <id>",
		Short: "Reject an incoming trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return settleTrade(cmd.Context(), args[0], false)
		},
	})
	return trades
}

func settleTrade(ctx context.Context, rawID string, approve bool) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid trade id %q", rawID)
	}
	return withSession(ctx, func(ctx context.Context, sess *app.Session) error {
		var t domain.Trade
		var err error
		if approve {
			t, err = sess.Client.ApproveTrade(ctx, id)
		} else {
			t, err = sess.Client.RejectTrade(ctx, id)
		}
		if err != nil {
			return err
		}
		return printJSONOrTable(t)
	})
}

func requestsCmd() *cobra.Command {
	reqs := &cobra.Command{Use: "requests", Short: "Pending join requests and invites"}
	reqs.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending requests, bucketed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				items, err := sess.Requests(ctx)
				if err != nil {
					return err
				}
				buckets := requests.Bucket(items, sess.Me.ID)
				if viper.GetBool("json") {
					return printJSON(buckets)
				}
				printRequestBucket("Invites for you", buckets.PendingInvites)
				printRequestBucket("Join requests for you", buckets.PendingRequests)
				printRequestBucket("Invites you sent", buckets.SentInvites)
				return nil
			})
		},
	})
	var meetID, fromUserID int64
	accept := &cobra.Command{
		Use:   "accept",
		Short: "Accept a request or invite",
		RunE: func(cmd *cobra.Command, args []string) error {
			return settleRequest(cmd.Context(), meetID, fromUserID, true)
		},
	}
	accept.Flags().Int64Var(&meetID, "meet", 0, "meeting id")
	accept.Flags().Int64Var(&fromUserID, "from", 0, "requesting user id")
	_ = accept.MarkFlagRequired("meet")
	_ = accept.MarkFlagRequired("from")
	reqs.AddCommand(accept)

	var dMeetID, dFromUserID int64
	decline := &cobra.Command{
		Use:   "decline",
		Short: "Decline a request or invite",
		RunE: func(cmd *cobra.Command, args []string) error {
			return settleRequest(cmd.Context(), dMeetID, dFromUserID, false)
		},
	}
	decline.Flags().Int64Var(&dMeetID, "meet", 0, "meeting id")
	decline.Flags().Int64Var(&dFromUserID, "from", 0, "requesting user id")
	_ = decline.MarkFlagRequired("meet")
	_ = decline.MarkFlagRequired("from")
	reqs.AddCommand(decline)
	return reqs
}

// settleRequest goes through the bridge so the pending lists and
// participant rows update before the server answers.
func settleRequest(ctx context.Context, meetID, fromUserID int64, accept bool) error {
	return withSession(ctx, func(ctx context.Context, sess *app.Session) error {
		items, err := sess.Requests(ctx)
		if err != nil {
			return err
		}
		var req *domain.RequestItem
		for i := range items {
			if items[i].MeetID == meetID && items[i].FromUserID == fromUserID {
				req = &items[i]
				break
			}
		}
		if req == nil {
			return fmt.Errorf("no pending request for meet %d from user %d", meetID, fromUserID)
		}
		if accept {
			sess.Bridge.AcceptRequest(ctx, *req)
		} else {
			sess.Bridge.DeclineRequest(ctx, *req)
		}
		sess.Bridge.Flush()
		fmt.Println("done")
		return nil
	})
}

func meetsCmd() *cobra.Command {
	meets := &cobra.Command{Use: "meets", Short: "Browse and manage meetings"}
	meets.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				items, err := sess.Meetings(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Owner", "Participants"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ID, m.Name, m.OwnerID, len(m.ParticipantIDs)})
				}
				tw.Render()
				return nil
			})
		},
	})
	var name string
	var eventID int64
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a meeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				m, err := sess.Client.CreateMeeting(ctx, name, eventID)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "meeting name")
	create.Flags().Int64Var(&eventID, "event-id", 0, "optional event id")
	_ = create.MarkFlagRequired("name")
	meets.AddCommand(create)

	meets.AddCommand(meetActionCmd("join", "Join a meeting directly", func(ctx context.Context, sess *app.Session, id int64) error {
		sess.Bridge.JoinMeeting(ctx, id)
		sess.Bridge.Flush()
		return nil
	}))
	meets.AddCommand(meetActionCmd("request", "Request to join a meeting", func(ctx context.Context, sess *app.Session, id int64) error {
		return sess.Client.RequestJoin(ctx, id)
	}))
	meets.AddCommand(meetActionCmd("leave", "Leave a meeting", func(ctx context.Context, sess *app.Session, id int64) error {
		sess.Bridge.LeaveMeeting(ctx, id)
		sess.Bridge.Flush()
		return nil
	}))

	var inviteUsers []int64
	invite := &cobra.Command{
		Use:   "invite <meet-id>",
		Short: "Invite users to a meeting you organize",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid meeting id %q", args[0])
			}
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				sess.Bridge.InviteUsers(ctx, id, inviteUsers)
				sess.Bridge.Flush()
				fmt.Println("done")
				return nil
			})
		},
	}
	invite.Flags().Int64SliceVar(&inviteUsers, "user", nil, "user id to invite (repeatable)")
	_ = invite.MarkFlagRequired("user")
	meets.AddCommand(invite)
	return meets
}

func meetActionCmd(verb, short string, fn func(context.Context, *app.Session, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <meet-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid meeting id %q", args[0])
			}
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				if err := fn(ctx, sess, id); err != nil {
					return err
				}
				fmt.Println("done")
				return nil
			})
		},
	}
}

func tradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trade",
		Short: "Start the interactive trade wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, sess *app.Session) error {
				return runTradeWizard(ctx, sess, bufio.NewReader(os.Stdin))
			})
		},
	}
}

// runTradeWizard drives Search -> Inventory -> Confirmation -> Sent on a
// terminal. Every transition goes through the wizard so the same gates
// apply as in any other frontend.
func runTradeWizard(ctx context.Context, sess *app.Session, reader *bufio.Reader) error {
	w := trade.NewWizard(sess.Bridge)
	catalogs, err := sess.RefreshCatalogs(ctx)
	if err != nil {
		return err
	}
	for {
		switch w.Step() {
		case trade.StepSearch:
			done, err := wizardSearch(ctx, sess, w, reader)
			if err != nil || done {
				return err
			}
		case trade.StepInventory:
			done, err := wizardInventory(ctx, sess, w, reader, catalogs)
			if err != nil || done {
				return err
			}
		case trade.StepConfirm:
			done, err := wizardConfirm(ctx, w, reader)
			if err != nil || done {
				return err
			}
		case trade.StepSent:
			fmt.Println("Trade sent. The other user will see it in their incoming trades.")
			w.Close()
			return nil
		}
	}
}

func wizardSearch(ctx context.Context, sess *app.Session, w *trade.Wizard, reader *bufio.Reader) (bool, error) {
	friends, err := sess.Friends(ctx)
	if err != nil {
		return false, err
	}
	all, err := sess.Users(ctx)
	if err != nil {
		return false, err
	}
	fmt.Print("Search users (empty = friends, q = quit): ")
	query, err := readLine(reader)
	if err != nil {
		return false, err
	}
	if query == "q" {
		return true, nil
	}
	matches := trade.SearchUsers(query, friends, all, sess.Me.ID)
	if len(matches) == 0 {
		fmt.Println("No users found.")
		return false, nil
	}
	for i, u := range matches {
		fmt.Printf("  %d) %s %s (@%s, %d pts)\n", i+1, u.Name, u.Surname, u.Login, u.Balance)
	}
	fmt.Print("Pick a number: ")
	pick, err := readLine(reader)
	if err != nil {
		return false, err
	}
	idx, err := strconv.Atoi(pick)
	if err != nil || idx < 1 || idx > len(matches) {
		fmt.Println("Not a valid pick.")
		return false, nil
	}
	return false, w.SelectTarget(matches[idx-1])
}

func wizardInventory(ctx context.Context, sess *app.Session, w *trade.Wizard, reader *bufio.Reader, catalogs domain.Catalogs) (bool, error) {
	target := w.Draft().Target
	entries, err := sess.Inventory(ctx, target.ID)
	if err != nil {
		return false, err
	}
	w.SetInventory(entries)
	groups := inventory.Group(entries)
	fmt.Printf("\n%s %s's inventory (points cap %d):\n", target.Name, target.Surname, w.PointsCap())
	renderGroups(groups, catalogs, &w.Draft().Selection)
	fmt.Printf("Requested points: %d\n", w.Draft().Points)
	if ok, block := w.Gate(); !ok {
		fmt.Printf("Blocked: %s\n", blockLabel(block))
	}
	fmt.Print("Toggle group #, p <points>, c = continue, b = back, q = quit: ")
	line, err := readLine(reader)
	if err != nil {
		return false, err
	}
	switch {
	case line == "q":
		w.Close()
		return true, nil
	case line == "b":
		w.Back()
		return false, nil
	case line == "c":
		if err := w.Continue(); err != nil {
			fmt.Println(err)
		}
		return false, nil
	case strings.HasPrefix(line, "p "):
		points, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "p ")))
		if err != nil {
			fmt.Println("Not a number.")
			return false, nil
		}
		if err := w.SetPoints(points); err != nil {
			fmt.Println(err)
		}
		return false, nil
	default:
		idx, err := strconv.Atoi(line)
		if err != nil || idx < 1 || idx > len(groups) {
			fmt.Println("Not a valid group.")
			return false, nil
		}
		w.ToggleGroup(groups[idx-1])
		return false, nil
	}
}

func wizardConfirm(ctx context.Context, w *trade.Wizard, reader *bufio.Reader) (bool, error) {
	s := w.Summary()
	fmt.Printf("\nOffer to %s %s:\n", s.Target.Name, s.Target.Surname)
	for _, item := range s.Preview {
		label := item.Name
		if label == "" {
			label = string(item.Type)
		}
		fmt.Printf("  - %s (#%d)\n", label, item.ID)
	}
	if s.Overflow > 0 {
		fmt.Printf("  ... and %d more\n", s.Overflow)
	}
	if s.Points > 0 {
		fmt.Printf("  + %d points\n", s.Points)
	}
	fmt.Print("s = send, b = back, q = quit: ")
	line, err := readLine(reader)
	if err != nil {
		return false, err
	}
	switch line {
	case "s":
		if err := w.Send(ctx); err != nil {
			fmt.Println(err)
		}
		return false, nil
	case "b":
		w.Back()
		return false, nil
	case "q":
		w.Close()
		return true, nil
	default:
		return false, nil
	}
}

func blockLabel(b trade.Block) string {
	switch b {
	case trade.BlockEmptyOffer:
		return "select at least one item or some points"
	case trade.BlockItemsInTrade:
		return "a selected item is already in another trade"
	default:
		return string(b)
	}
}

// --- helpers ---

func withSession(ctx context.Context, fn func(context.Context, *app.Session) error) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	sess, err := app.NewSession(ctx, app.Options{
		Workspace: viper.GetString("workspace"),
		BaseURL:   viper.GetString("base-url"),
		Token:     viper.GetString("token"),
		Logger:    logger,
		Notify: func(n bridge.Notice) {
			fmt.Fprintf(os.Stderr, "%s: %s\n", n.Kind, n.Message)
		},
	})
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(ctx, sess)
}

func renderGroups(groups []domain.GroupedItem, catalogs domain.Catalogs, sel *trade.Selection) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	header := table.Row{"#", "Name", "Type", "Count", "Price"}
	if sel != nil {
		header = append(header, "Selected")
	}
	tw.AppendHeader(header)
	for i, g := range groups {
		display, ok := inventory.Resolve(g, catalogs)
		name := display.Name
		if !ok || name == "" {
			name = g.Name
		}
		if name == "" {
			name = string(g.Type)
		}
		row := table.Row{i + 1, name, g.Type, g.Count, display.Price}
		if sel != nil {
			mark := ""
			if sel.AllSelected(g) {
				mark = "x"
			}
			row = append(row, mark)
		}
		tw.AppendRow(row)
	}
	tw.Render()
}

func printUsers(users []domain.User) error {
	if viper.GetBool("json") {
		return printJSON(users)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Surname", "Login", "Balance"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Name, u.Surname, u.Login, u.Balance})
	}
	tw.Render()
	return nil
}

func printRequestBucket(title string, items []domain.RequestItem) {
	fmt.Println(title + ":")
	if len(items) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, r := range items {
		kind := "invite"
		if r.IsRequest {
			kind = "request"
		}
		fmt.Printf("  meet %d: %s from user %d to user %d\n", r.MeetID, kind, r.FromUserID, r.ToUserID)
	}
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
