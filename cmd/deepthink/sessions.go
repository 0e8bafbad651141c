package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/deepthink/internal/orchestrator"
	"github.com/ShayCichocki/deepthink/internal/state"
)

var (
	sessionsLimit     int
	sessionsOutput    string
	sessionsOlderThan time.Duration
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved chat sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSessions()
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSessions()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session's conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *state.DB) error {
			s, err := db.FindSession(args[0])
			if err != nil {
				return err
			}
			msgs, err := db.ListMessages(s.ID)
			if err != nil {
				return err
			}
			printConversation(os.Stdout, s, msgs)
			return nil
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *state.DB) error {
			s, err := db.FindSession(args[0])
			if err != nil {
				return err
			}
			if err := db.DeleteSession(s.ID); err != nil {
				return err
			}
			fmt.Printf("%s Deleted session %s\n", color.GreenString("✓"), s.ID[:8])
			return nil
		})
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a session, including expert outputs, as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *state.DB) error {
			s, err := db.FindSession(args[0])
			if err != nil {
				return err
			}
			msgs, err := db.ListMessages(s.ID)
			if err != nil {
				return err
			}

			var out io.Writer = os.Stdout
			if sessionsOutput != "" && sessionsOutput != "-" {
				f, err := os.Create(sessionsOutput)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				out = f
			}
			return exportSession(out, s, msgs)
		})
	},
}

var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete sessions not updated recently",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *state.DB) error {
			n, err := db.PurgeOldSessions(sessionsOlderThan)
			if err != nil {
				return err
			}
			fmt.Printf("%s Purged %d session(s) older than %s\n", color.GreenString("✓"), n, sessionsOlderThan)
			return nil
		})
	},
}

func init() {
	sessionsCmd.PersistentFlags().IntVarP(&sessionsLimit, "limit", "n", 20, "Maximum number of sessions to list")
	sessionsExportCmd.Flags().StringVarP(&sessionsOutput, "output", "o", "", "Write to file instead of stdout")
	sessionsPurgeCmd.Flags().DurationVar(&sessionsOlderThan, "older-than", 30*24*time.Hour, "Age threshold")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsPurgeCmd)
}

func withStore(fn func(db *state.DB) error) error {
	db, err := state.OpenGlobal()
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer db.Close()
	return fn(db)
}

func listSessions() error {
	return withStore(func(db *state.DB) error {
		sessions, err := db.ListSessions(sessionsLimit)
		if err != nil {
			return err
		}
		printSessions(os.Stdout, sessions)
		return nil
	})
}

func printSessions(w io.Writer, sessions []state.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPDATED\tMODEL\tTITLE")
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID[:8], s.UpdatedAt.Local().Format("2006-01-02 15:04"), s.Model, title)
	}
	tw.Flush()
}

func printConversation(w io.Writer, s *state.Session, msgs []state.Message) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	bold.Fprintf(w, "%s\n", s.Title)
	dim.Fprintf(w, "%s · %s · %d message(s)\n\n", s.ID, s.Model, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case orchestrator.RoleUser:
			color.New(color.FgCyan, color.Bold).Fprintf(w, "? %s\n\n", m.Content)
		default:
			if len(m.Experts) > 0 {
				roles := make([]string, len(m.Experts))
				for i, e := range m.Experts {
					roles[i] = e.Role
				}
				dim.Fprintf(w, "experts: %s · %s\n", strings.Join(roles, ", "), m.TotalDuration.Round(100*time.Millisecond))
			}
			fmt.Fprintf(w, "%s\n\n", m.Content)
		}
	}
}

// sessionExport is the document written by 'sessions export'.
type sessionExport struct {
	Session  *state.Session  `yaml:"session"`
	Messages []state.Message `yaml:"messages"`
}

func exportSession(w io.Writer, s *state.Session, msgs []state.Message) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(sessionExport{Session: s, Messages: msgs}); err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return enc.Close()
}
