package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edwinlov3tt/approval-dashboard/internal/app"
	"github.com/edwinlov3tt/approval-dashboard/internal/config"
	"github.com/edwinlov3tt/approval-dashboard/internal/db"
	"github.com/edwinlov3tt/approval-dashboard/internal/domain"
	"github.com/edwinlov3tt/approval-dashboard/internal/engine"
	"github.com/edwinlov3tt/approval-dashboard/internal/migrate"
	"github.com/edwinlov3tt/approval-dashboard/internal/notify"
	"github.com/edwinlov3tt/approval-dashboard/internal/repo"
	"github.com/edwinlov3tt/approval-dashboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "apd",
	Short: "Approval dashboard CLI",
	Long: `apd runs the ad approval workflow: creatives move through tiered review,
reviewers approve, reject or suggest revisions, and every action lands in an
append-only activity log. Workspace state lives in .apd/ next to approval.yml.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("APD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("email", "local-user@localhost", "acting user email")
	rootCmd.PersistentFlags().String("name", "", "acting user name")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("email", rootCmd.PersistentFlags().Lookup("email"))
	_ = viper.BindPFlag("name", rootCmd.PersistentFlags().Lookup("name"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(campaignCmd())
	rootCmd.AddCommand(adCmd())
	rootCmd.AddCommand(approverCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var advertiserID, companyName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize workspace config and database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if advertiserID == "" {
				advertiserID = uuid.New().String()
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(advertiserID)), 0o644); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			cfg.Advertiser.CompanyName = companyName
			a, err := app.ResolveAdvertiser(cmd.Context(), cfg, repo.Repo{DB: conn})
			if err != nil {
				return err
			}
			fmt.Printf("Initialized workspace for advertiser %s (%s)\n", a.ID, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&advertiserID, "advertiser-id", "", "advertiser id (generated when omitted)")
	cmd.Flags().StringVar(&companyName, "company-name", "", "company name")
	return cmd
}

func requestCmd() *cobra.Command {
	req := &cobra.Command{Use: "request", Short: "Manage approval requests"}
	req.AddCommand(requestCreateCmd())
	req.AddCommand(requestListCmd())
	req.AddCommand(requestShowCmd())
	req.AddCommand(requestDecideCmd())
	req.AddCommand(requestReviseCmd())
	req.AddCommand(requestResolveCmd())
	req.AddCommand(requestResubmitCmd())
	req.AddCommand(requestActivityCmd())
	return req
}

func requestCreateCmd() *cobra.Command {
	var adID, previewURL string
	var reviewers []string
	var expiresDays int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a review for a creative",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.CreateRequestOptions{
				AdID:          adID,
				PreviewURL:    previewURL,
				ExpiresInDays: expiresDays,
				ActorEmail:    viper.GetString("email"),
				ActorName:     viper.GetString("name"),
			}
			for _, spec := range reviewers {
				p, err := parseReviewer(spec)
				if err != nil {
					return err
				}
				opts.Participants = append(opts.Participants, p)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, parts, err := e.CreateRequest(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndent(map[string]any{"request": q, "participants": parts})
			})
		},
	}
	cmd.Flags().StringVar(&adID, "ad", "", "creative id")
	cmd.Flags().StringArrayVar(&reviewers, "reviewer", nil, "reviewer as email:name:tier[:final] (repeatable)")
	cmd.Flags().StringVar(&previewURL, "preview-url", "", "preview URL")
	cmd.Flags().IntVar(&expiresDays, "expires-days", 0, "review window in days (0 = config default)")
	_ = cmd.MarkFlagRequired("ad")
	_ = cmd.MarkFlagRequired("reviewer")
	return cmd
}

// parseReviewer parses email:name:tier[:final].
func parseReviewer(spec string) (engine.ParticipantInput, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 3 {
		return engine.ParticipantInput{}, fmt.Errorf("reviewer %q: want email:name:tier[:final]", spec)
	}
	tier, err := strconv.Atoi(parts[2])
	if err != nil {
		return engine.ParticipantInput{}, fmt.Errorf("reviewer %q: tier must be a number", spec)
	}
	p := engine.ParticipantInput{Email: parts[0], Name: parts[1], Tier: tier}
	if len(parts) > 3 && parts[3] == "final" {
		p.IsFinalApprover = true
	}
	return p, nil
}

func requestListCmd() *cobra.Command {
	var status, adID string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approval requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListRequests(ctx, repo.RequestFilters{
					AdvertiserID: e.Config.Advertiser.ID,
					AdID:         adID,
					Status:       status,
					Limit:        limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Ad", "Status", "Tier", "Expires", "Updated"})
				for _, q := range items {
					expires := ""
					if q.ExpiresAt != nil {
						expires = *q.ExpiresAt
					}
					tw.AppendRow(table.Row{q.ID, q.AdID, q.Status, q.CurrentTier, expires, q.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&adID, "ad", "", "creative filter")
	cmd.Flags().IntVar(&limit, "n", 50, "max rows")
	return cmd
}

func requestShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a request with reviewers and revisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.Get(ctx, args[0])
				if err != nil {
					return err
				}
				parts, err := e.Repo.ListParticipants(ctx, q.ID)
				if err != nil {
					return err
				}
				revs, err := e.Repo.ListRevisions(ctx, q.ID)
				if err != nil {
					return err
				}
				return printJSONOrIndent(map[string]any{
					"request":      q,
					"participants": parts,
					"revisions":    revs,
				})
			})
		},
	}
	return cmd
}

func requestDecideCmd() *cobra.Command {
	var participantID, decision, comment string
	cmd := &cobra.Command{
		Use:   "decide <id>",
		Short: "Submit an approve or reject verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.SubmitDecision(ctx, engine.DecisionOptions{
					RequestID:     args[0],
					ParticipantID: participantID,
					Decision:      decision,
					Comment:       comment,
				})
				if err != nil {
					return err
				}
				return printJSONOrIndent(q)
			})
		},
	}
	cmd.Flags().StringVar(&participantID, "participant", "", "participant id")
	cmd.Flags().StringVar(&decision, "decision", "", "approved or rejected")
	cmd.Flags().StringVar(&comment, "comment", "", "optional comment")
	_ = cmd.MarkFlagRequired("participant")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func requestReviseCmd() *cobra.Command {
	var participantID string
	var changes []string
	var comment string
	cmd := &cobra.Command{
		Use:   "revise <id>",
		Short: "Submit revision suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.RevisionBatchOptions{RequestID: args[0], ParticipantID: participantID}
			for _, c := range changes {
				key, value, ok := strings.Cut(c, "=")
				if !ok {
					return fmt.Errorf("change %q: want element_path=revised_value", c)
				}
				opts.Items = append(opts.Items, engine.RevisionInput{
					ElementPath:  key,
					RevisedValue: value,
					Comment:      comment,
				})
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				revs, err := e.SubmitRevisions(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndent(revs)
			})
		},
	}
	cmd.Flags().StringVar(&participantID, "participant", "", "participant id")
	cmd.Flags().StringArrayVar(&changes, "change", nil, "element_path=revised_value (repeatable)")
	cmd.Flags().StringVar(&comment, "comment", "", "comment applied to each change")
	_ = cmd.MarkFlagRequired("participant")
	_ = cmd.MarkFlagRequired("change")
	return cmd
}

func requestResolveCmd() *cobra.Command {
	var action string
	cmd := &cobra.Command{
		Use:   "resolve <id> <revision_id>",
		Short: "Accept or decline a revision suggestion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if action != "accept" && action != "decline" {
				return fmt.Errorf("--action must be accept or decline")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.ResolveRevision(ctx, args[0], args[1], action == "accept", viper.GetString("email"), viper.GetString("name"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(s)
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "accept", "accept or decline")
	return cmd
}

func requestResubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resubmit <id>",
		Short: "Return a revised creative to review from tier 1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.Resubmit(ctx, args[0], viper.GetString("email"), viper.GetString("name"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(q)
			})
		},
	}
	return cmd
}

func requestActivityCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "activity <id>",
		Short: "Show the audit timeline, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListActivity(ctx, args[0], n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"At", "Event", "Who", "Metadata"})
				for _, it := range items {
					who := it.UserEmail
					if it.UserName != "" {
						who = fmt.Sprintf("%s <%s>", it.UserName, it.UserEmail)
					}
					tw.AppendRow(table.Row{it.CreatedAt, it.EventType, who, it.MetadataJSON})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 50, "max rows")
	return cmd
}

func campaignCmd() *cobra.Command {
	c := &cobra.Command{Use: "campaign", Short: "Manage campaigns"}
	c.AddCommand(campaignCreateCmd())
	c.AddCommand(campaignListCmd())
	c.AddCommand(campaignShowCmd())
	c.AddCommand(campaignDeleteCmd())
	c.AddCommand(campaignAttachCmd())
	c.AddCommand(campaignDetachCmd())
	return c
}

func campaignCreateCmd() *cobra.Command {
	var name, description, status string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				now := time.Now().UTC().Format(time.RFC3339)
				c := domain.Campaign{
					ID:           uuid.New().String(),
					AdvertiserID: e.Config.Advertiser.ID,
					Name:         name,
					Description:  description,
					Status:       "waiting",
					CreatedAt:    now,
					UpdatedAt:    now,
				}
				if status != "" {
					c.Status = status
				}
				if err := e.Repo.InsertCampaign(ctx, c); err != nil {
					return err
				}
				return printJSONOrIndent(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "campaign name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "initial status")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func campaignListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListCampaigns(ctx, e.Config.Advertiser.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				counts, err := e.Repo.CountCampaignAds(ctx, e.Config.Advertiser.ID)
				if err != nil {
					return err
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Ads"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.Status, counts[c.ID]})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func campaignShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show campaign with its creatives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Repo.GetCampaign(ctx, args[0])
				if err != nil {
					return err
				}
				ads, err := e.Repo.ListCampaignAds(ctx, c.ID)
				if err != nil {
					return err
				}
				return printJSONOrIndent(map[string]any{"campaign": c, "ads": ads})
			})
		},
	}
	return cmd
}

func campaignDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteCampaign(ctx, args[0])
			})
		},
	}
	return cmd
}

func campaignAttachCmd() *cobra.Command {
	var order int
	cmd := &cobra.Command{
		Use:   "attach <campaign_id> <ad_id>",
		Short: "Attach a creative to a campaign",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.AttachAd(ctx, args[0], args[1], order)
			})
		},
	}
	cmd.Flags().IntVar(&order, "order", 0, "display order")
	return cmd
}

func campaignDetachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detach <campaign_id> <ad_id>",
		Short: "Detach a creative from a campaign",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DetachAd(ctx, args[0], args[1])
			})
		},
	}
	return cmd
}

func adCmd() *cobra.Command {
	c := &cobra.Command{Use: "ad", Short: "Manage creatives"}
	c.AddCommand(adCreateCmd())
	c.AddCommand(adListCmd())
	c.AddCommand(adShowCmd())
	return c
}

func adCreateCmd() *cobra.Command {
	var contentJSON string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create creative from content JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var tmp map[string]any
			if err := json.Unmarshal([]byte(contentJSON), &tmp); err != nil {
				return fmt.Errorf("--content must be a JSON object: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				now := time.Now().UTC().Format(time.RFC3339)
				a := domain.Ad{
					ID:           uuid.New().String(),
					AdvertiserID: e.Config.Advertiser.ID,
					ShortID:      uuid.New().String()[:8],
					ContentJSON:  contentJSON,
					CreatedAt:    now,
					UpdatedAt:    now,
				}
				if err := e.Repo.InsertAd(ctx, a); err != nil {
					return err
				}
				return printJSONOrIndent(a)
			})
		},
	}
	cmd.Flags().StringVar(&contentJSON, "content", "", "creative content JSON")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func adListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List creatives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAds(ctx, e.Config.Advertiser.ID)
				if err != nil {
					return err
				}
				return printJSONOrIndent(items)
			})
		},
	}
	return cmd
}

func adShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show creative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				a, err := r.GetAd(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(a)
			})
		},
	}
	return cmd
}

func approverCmd() *cobra.Command {
	c := &cobra.Command{Use: "approver", Short: "Reviewer roster"}
	c.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListApprovers(ctx, e.Config.Advertiser.ID)
				if err != nil {
					return err
				}
				return printJSONOrIndent(items)
			})
		},
	})
	var name string
	var final bool
	add := &cobra.Command{
		Use:   "add <email>",
		Short: "Add a reviewer to the roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a := domain.Approver{
					ID:              uuid.New().String(),
					AdvertiserID:    e.Config.Advertiser.ID,
					Email:           args[0],
					Name:            name,
					IsFinalApprover: final,
					CreatedAt:       time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.UpsertApprover(ctx, a); err != nil {
					return err
				}
				return printJSONOrIndent(a)
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().BoolVar(&final, "final", false, "mark as final approver")
	c.AddCommand(add)
	c.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a reviewer from the roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteApprover(ctx, e.Config.Advertiser.ID, args[0])
			})
		},
	})
	return c
}

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Review pipeline summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				advID := e.Config.Advertiser.ID
				counts, err := e.Repo.CountRequestsByStatus(ctx, advID)
				if err != nil {
					return err
				}
				since := time.Now().UTC().AddDate(0, 0, -7).Format(time.RFC3339)
				approved, err := e.Repo.CountApprovedSince(ctx, advID, since)
				if err != nil {
					return err
				}
				campaigns, ads, err := e.Repo.CountAdvertiserInventory(ctx, advID)
				if err != nil {
					return err
				}
				recent, err := e.Repo.RecentActivity(ctx, advID, 10)
				if err != nil {
					return err
				}
				return printJSONOrIndent(map[string]any{
					"status_counts":    counts,
					"approved_last_7d": approved,
					"campaigns":        campaigns,
					"ads":              ads,
					"recent_activity":  recent,
				})
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	c := &cobra.Command{Use: "log", Short: "Activity log"}
	var n int
	var after int64
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail activity across all requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ActivityAfter(ctx, n, after)
				if err != nil {
					return err
				}
				return printJSONOrIndent(items)
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of entries")
	tail.Flags().Int64Var(&after, "after", 0, "only entries with id greater than this")
	c.AddCommand(tail)
	return c
}

func apikeyCmd() *cobra.Command {
	c := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	c.AddCommand(apikeyCreateCmd())
	c.AddCommand(apikeyListCmd())
	c.AddCommand(apikeyRevokeCmd())
	return c
}

func apikeyCreateCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (the raw key is printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email required")
			}
			raw := make([]byte, 24)
			if _, err := rand.Read(raw); err != nil {
				return err
			}
			key := "apd_" + hex.EncodeToString(raw)
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				k := domain.APIKey{
					ID:        uuid.New().String(),
					Email:     strings.ToLower(email),
					Name:      name,
					KeyHash:   repo.HashAPIKey(key),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, k); err != nil {
					return err
				}
				return printJSONOrIndent(map[string]any{"id": k.ID, "email": k.Email, "key": key})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "key owner email")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx)
				if err != nil {
					return err
				}
				return printJSONOrIndent(items)
			})
		},
	}
}

func apikeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			if _, err := app.ResolveAdvertiser(cmd.Context(), cfg, r); err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("APD_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("APD_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			notify.Start(r, cfg)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving approval API on http://%s%s\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	if _, err := app.ResolveAdvertiser(ctx, cfg, repo.Repo{DB: conn}); err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrIndent(v any) error {
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
