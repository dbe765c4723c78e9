package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salzamar/openclaw-mission-control/internal/board"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskStatusCmd())
	cmd.AddCommand(newTaskAssignCmd())
	cmd.AddCommand(newTaskCommentCmd())
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		title    string
		desc     string
		priority string
		tags     []string
		assignee string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task (auto-assigned when no assignee is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title is required")
			}
			svc, done, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			in := board.CreateTaskInput{
				Title:       title,
				Description: desc,
				Priority:    priority,
				Tags:        tags,
				Actor:       "cli",
			}
			if assignee != "" {
				in.Assignees = []string{assignee}
			}
			task, assigned, err := svc.CreateTask(cmd.Context(), in)
			if err != nil {
				return err
			}
			if assigned != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task %d, assigned to %s\n", task.TaskID, *assigned)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task %d (unassigned)\n", task.TaskID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().StringVar(&desc, "description", "", "Task description")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (critical, high, normal, low)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Assignee (skips auto-assignment)")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				norm, ok := models.NormalizeStatus(status)
				if !ok {
					return fmt.Errorf("invalid status %q", status)
				}
				status = norm
			}
			svc, done, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			tasks, err := svc.Store.ListTasks(cmd.Context(), status, limit)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
				return nil
			}
			for _, t := range tasks {
				who := "-"
				if len(t.Assignees) > 0 {
					who = t.Assignees[0]
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%-12s\t%-8s\t%s\t%s\n", t.TaskID, t.Status, t.Priority, who, t.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max tasks to list (0 = default)")
	return cmd
}

func newTaskStatusCmd() *cobra.Command {
	var (
		taskID int64
		status string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Set task status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID <= 0 || status == "" {
				return fmt.Errorf("--id and --status are required")
			}
			svc, done, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			task, err := svc.UpdateTask(cmd.Context(), taskID, models.TaskPatch{Status: &status}, "cli")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %d status set to %q\n", task.TaskID, task.Status)
			return nil
		},
	}
	cmd.Flags().Int64Var(&taskID, "id", 0, "Task ID")
	cmd.Flags().StringVar(&status, "status", "", "New status (inbox, assigned, in_progress, review, done, archived)")
	return cmd
}

func newTaskAssignCmd() *cobra.Command {
	var (
		taskID   int64
		assignee string
	)

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign a task to an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID <= 0 || assignee == "" {
				return fmt.Errorf("--id and --assignee are required")
			}
			svc, done, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			assignees := []string{assignee}
			if _, err := svc.UpdateTask(cmd.Context(), taskID, models.TaskPatch{Assignees: &assignees}, "cli"); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Assigned task %d to %q\n", taskID, assignee)
			return nil
		},
	}
	cmd.Flags().Int64Var(&taskID, "id", 0, "Task ID")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Assignee name")
	return cmd
}

func newTaskCommentCmd() *cobra.Command {
	var (
		taskID  int64
		sender  string
		content string
		docIDs  []string
	)

	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Post a message on a task thread (mentions notify agents)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID <= 0 || content == "" {
				return fmt.Errorf("--id and --content are required")
			}
			if sender == "" {
				sender = "cli"
			}
			svc, done, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			msg, notified, err := svc.PostMessage(cmd.Context(), taskID, sender, content, docIDs)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Posted message %d (%d notified)\n", msg.MessageID, notified)
			return nil
		},
	}
	cmd.Flags().Int64Var(&taskID, "id", 0, "Task ID")
	cmd.Flags().StringVar(&sender, "sender", "", "Sender name (default: cli)")
	cmd.Flags().StringVar(&content, "content", "", "Message content")
	cmd.Flags().StringSliceVar(&docIDs, "document", nil, "Document ID to attach (repeatable)")
	return cmd
}
