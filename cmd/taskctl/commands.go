package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ytakahashi/taskboard/internal/filter"
	"github.com/ytakahashi/taskboard/internal/models"
	"github.com/ytakahashi/taskboard/internal/store"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "taskctl",
		Short: "Manage your tasks from the terminal",
		Long: `taskctl keeps a task list for the current terminal session, or in your
account once you have signed in with "taskctl login".

Examples:
  taskctl add "Buy milk" --important
  taskctl list --view completed
  taskctl done 1`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default $HOME/.taskctl.yaml)")
	pf.String(keyServer, "", "task API base URL")
	pf.String(keyToken, "", "bearer token of a signed-in user")
	pf.String(keySession, "", "guest session id (default: the parent shell's pid)")
	pf.String(keySessionDir, "", "directory holding guest sessions")
	pf.String(keyRedis, "", "keep guest sessions in Redis at this address")
	for _, key := range []string{keyServer, keyToken, keySession, keySessionDir, keyRedis} {
		_ = a.v.BindPFlag(key, pf.Lookup(key))
	}

	root.AddCommand(loginCmd(a))
	root.AddCommand(logoutCmd(a))
	root.AddCommand(listCmd(a))
	root.AddCommand(addCmd(a))
	root.AddCommand(updateCmd(a))
	root.AddCommand(doneCmd(a))
	root.AddCommand(deleteCmd(a))
	return root
}

func loginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <user>",
		Short: "Sign in and remember the token in the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.client().SignIn(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("sign-in failed: %w", err)
			}
			if err := a.saveToken(token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", args[0])
			return nil
		},
	}
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.saveToken(""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func listCmd(a *app) *cobra.Command {
	var (
		view      string
		status    string
		important bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := filter.ParseView(view)
			if err != nil {
				return err
			}
			sel := filter.Selection{ImportantOnly: important}
			if status != "" && !strings.EqualFold(status, "all") {
				st, err := models.ParseStatus(status)
				if err != nil {
					return err
				}
				sel.Status = &st
			}

			ctx := cmd.Context()
			term, err := a.openTerminal(ctx)
			if err != nil {
				return err
			}
			defer term.close()

			s := term.store
			out := cmd.OutOrStdout()
			printCounts(out, s.Mode(), s.Tasks())

			f := filter.Compose(v, sel)
			if err := s.SetFilter(ctx, f); err != nil {
				return err
			}
			printTasks(out, s.Tasks())
			if err := term.rememberListing(ctx, f); err != nil {
				log.Printf("Failed to remember the listing: %v", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&view, "view", "all", "view (all, completed, important)")
	cmd.Flags().StringVarP(&status, "status", "s", "", "only tasks with this status (Pending, InProgress, Completed, Skip)")
	cmd.Flags().BoolVarP(&important, "important", "i", false, "only important tasks")
	return cmd
}

func addCmd(a *app) *cobra.Command {
	var (
		description string
		status      string
		important   bool
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := models.Draft{
				Title:       strings.Join(args, " "),
				Description: description,
				Important:   important,
			}
			if status != "" {
				st, err := models.ParseStatus(status)
				if err != nil {
					return err
				}
				draft.Status = st
			}

			ctx := cmd.Context()
			term, err := a.openTerminal(ctx)
			if err != nil {
				return err
			}
			defer term.close()

			err = term.store.Add(ctx, draft)
			printNotice(cmd.OutOrStdout(), term.store)
			return err
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "longer description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "initial status (default Pending)")
	cmd.Flags().BoolVarP(&important, "important", "i", false, "mark as important")
	return cmd
}

func updateCmd(a *app) *cobra.Command {
	var (
		title       string
		description string
		status      string
		important   bool
	)

	cmd := &cobra.Command{
		Use:   "update <id|number>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p models.Patch
			flags := cmd.Flags()
			if flags.Changed("title") {
				p.Title = &title
			}
			if flags.Changed("description") {
				p.Description = &description
			}
			if flags.Changed("status") {
				st, err := models.ParseStatus(status)
				if err != nil {
					return err
				}
				p.Status = &st
			}
			if flags.Changed("important") {
				p.Important = &important
			}
			if p.IsEmpty() {
				return fmt.Errorf("nothing to update; pass --title, --description, --status or --important")
			}
			return a.change(cmd, args[0], func(ctx context.Context, s *store.Store, id string) error {
				return s.Update(ctx, id, p)
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "new status")
	cmd.Flags().BoolVarP(&important, "important", "i", false, "mark or unmark as important")
	return cmd
}

func doneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id|number>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.change(cmd, args[0], func(ctx context.Context, s *store.Store, id string) error {
				return s.Update(ctx, id, models.StatusPatch(models.StatusCompleted))
			})
		},
	}
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id|number>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.change(cmd, args[0], func(ctx context.Context, s *store.Store, id string) error {
				return s.Delete(ctx, id)
			})
		},
	}
}

// change opens the store, resolves ref and applies fn. Numbers count rows of
// the last printed listing; ids and id prefixes match any task.
func (a *app) change(cmd *cobra.Command, ref string, fn func(context.Context, *store.Store, string) error) error {
	ctx := cmd.Context()
	term, err := a.openTerminal(ctx)
	if err != nil {
		return err
	}
	defer term.close()

	s := term.store
	all := s.Tasks()
	listed := all
	f, err := term.listing(ctx)
	if err != nil {
		return fmt.Errorf("failed to read the last listing: %w", err)
	}
	if !f.IsZero() {
		if err := s.SetFilter(ctx, f); err != nil {
			return err
		}
		listed = s.Tasks()
	}

	id, err := resolveID(all, listed, ref)
	if err != nil {
		return err
	}
	if err := fn(ctx, s, id); err != nil {
		printNotice(cmd.OutOrStdout(), s)
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}

// resolveID accepts a task id, a unique id prefix or a 1-based position in
// listed, the rows printed by the last "list".
func resolveID(all, listed []models.Task, ref string) (string, error) {
	for _, t := range all {
		if t.ID == ref {
			return t.ID, nil
		}
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(listed) {
			return "", fmt.Errorf("no task number %d in the last listing", n)
		}
		return listed[n-1].ID, nil
	}

	var match string
	for _, t := range all {
		if strings.HasPrefix(t.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("%q matches more than one task", ref)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no task %q", ref)
	}
	return match, nil
}

func printCounts(w io.Writer, mode store.Mode, all []models.Task) {
	views := []filter.View{filter.ViewAll, filter.ViewCompleted, filter.ViewImportant}
	parts := make([]string, 0, len(views))
	for _, v := range views {
		n := len(filter.Compose(v, filter.Selection{}).Apply(all))
		parts = append(parts, fmt.Sprintf("%s %d", v, n))
	}
	fmt.Fprintf(w, "[%s] %s\n", mode, strings.Join(parts, " | "))
}

func printTasks(w io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, t := range tasks {
		mark := " "
		if t.Important {
			mark = "!"
		}
		fmt.Fprintf(tw, "%d.\t%s\t%s\t%s\t%s\n", i+1, mark, t.Title, t.Status, shortID(t.ID))
	}
	tw.Flush()
}

func printNotice(w io.Writer, s *store.Store) {
	if msg, ok := s.Notice(); ok {
		fmt.Fprintln(w, msg)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
