package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cheerhou/DevoLight/internal/domain"
	"github.com/cheerhou/DevoLight/internal/infra/logger"
	"github.com/cheerhou/DevoLight/internal/usecase"
	"github.com/cheerhou/DevoLight/internal/usecase/multiagent"
)

type routeFlags struct {
	scripture      string
	mode           string
	agent          string
	profession     string
	concerns       []string
	spiritualState string
	ageGroup       string
	session        string
	stage          string
	routingOnly    bool
}

type routeResult struct {
	Decision    *domain.Decision      `json:"decision,omitempty"`
	RoleOutputs []domain.RoleOutput   `json:"role_outputs,omitempty"`
	Warnings    []string              `json:"warnings,omitempty"`
	Routing     *domain.RoutingResult `json:"routing"`
}

func newRouteCmd(opts *rootOptions) *cobra.Command {
	f := &routeFlags{}
	cmd := &cobra.Command{
		Use:   "route [message...]",
		Short: "Route one message and print the result as JSON",
		Example: `  devolight route --scripture "约翰福音3:16" 神爱世人是什么意思
  devolight route --mode single --agent martha 工作压力很大
  devolight route --routing-only --mode sequence 诗篇23篇`,
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.TrimSpace(strings.Join(args, " "))
			if message == "" && f.scripture == "" {
				return errors.New("a message or --scripture is required")
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log, closeLog, err := logger.New(cfg.Logger)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer closeLog()

			profile := &domain.UserProfile{
				Profession:     f.profession,
				Concerns:       f.concerns,
				SpiritualState: f.spiritualState,
				AgeGroup:       f.ageGroup,
			}

			var out routeResult
			if f.routingOnly {
				mode, err := usecase.ParseMode(f.mode)
				if err != nil {
					return err
				}
				router := multiagent.NewRouterWithLogger(multiagent.DefaultRegistry(), routerConfig(cfg.Router), nil, log)
				res, err := router.Route(cmd.Context(), multiagent.Request{
					Message:   strings.TrimSpace(f.scripture + " " + message),
					Mode:      mode,
					AgentID:   f.agent,
					Profile:   profile,
					SessionID: f.session,
				})
				if err != nil {
					return err
				}
				out.Routing = res
			} else {
				a, err := wireApp(cfg, log)
				if err != nil {
					return err
				}
				defer a.Close()

				res, err := a.service.Route(cmd.Context(), usecase.RouteInput{
					SessionID:    f.session,
					Scripture:    f.scripture,
					Text:         message,
					Profile:      profile,
					SessionStage: f.stage,
					Mode:         f.mode,
					Agent:        f.agent,
				})
				if err != nil {
					return err
				}
				out.Decision = &res.Decision
				out.RoleOutputs = res.RoleOutputs
				out.Warnings = res.Warnings
				out.Routing = res.Routing
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(out)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.scripture, "scripture", "", "scripture reference, e.g. 约翰福音3:16")
	fl.StringVar(&f.mode, "mode", "", "routing mode: single, smart|intelligent, sequence|sequential")
	fl.StringVar(&f.agent, "agent", "", "agent key or id for single mode")
	fl.StringVar(&f.profession, "profession", "", "user profession")
	fl.StringSliceVar(&f.concerns, "concern", nil, "user concern (repeatable)")
	fl.StringVar(&f.spiritualState, "spiritual-state", "", "user spiritual state")
	fl.StringVar(&f.ageGroup, "age-group", "", "user age group")
	fl.StringVar(&f.session, "session", "", "session id (generated when empty)")
	fl.StringVar(&f.stage, "stage", "", "session stage")
	fl.BoolVar(&f.routingOnly, "routing-only", false, "print the routing result without calling any responder")
	return cmd
}
