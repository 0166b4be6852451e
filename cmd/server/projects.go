package main

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/remote-agent-terminal/shellbridge/internal/db"
	"github.com/remote-agent-terminal/shellbridge/internal/model"
	"github.com/remote-agent-terminal/shellbridge/internal/repository"
)

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage the projects terminals can be opened in",
	}
	cmd.AddCommand(
		projectsAddCmd(),
		projectsListCmd(),
		projectsRemoveCmd(),
	)
	return cmd
}

// withProjects opens the project store configured in the environment.
func withProjects(fn func(ctx context.Context, repo *repository.ProjectRepository) error) error {
	cfg, logger, err := setup("stderr")
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, err := db.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	return fn(context.Background(), repository.NewProjectRepository(database))
}

func projectsAddCmd() *cobra.Command {
	var id, name string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a directory as a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := model.CreateProjectRequest{ID: id, Name: name, Path: args[0]}
			if err := req.Validate(); err != nil {
				return err
			}
			project := &model.Project{
				ID:        req.ID,
				Name:      req.Name,
				Path:      req.Path,
				CreatedAt: time.Now().UTC(),
			}
			if project.ID == "" {
				project.ID = uuid.New().String()
			}
			if project.Name == "" {
				project.Name = filepath.Base(project.Path)
			}

			return withProjects(func(ctx context.Context, repo *repository.ProjectRepository) error {
				if err := repo.Create(ctx, project); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) -> /ws/%s\n", project.Name, project.Path, project.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Project ID used in terminal URLs (default: random UUID)")
	cmd.Flags().StringVar(&name, "name", "", "Display name (default: directory name)")
	return cmd
}

func projectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProjects(func(ctx context.Context, repo *repository.ProjectRepository) error {
				projects, err := repo.List(ctx)
				if err != nil {
					return err
				}
				if len(projects) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no projects")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tPATH")
				for _, p := range projects {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.Path)
				}
				return tw.Flush()
			})
		},
	}
}

func projectsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Unregister a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProjects(func(ctx context.Context, repo *repository.ProjectRepository) error {
				if err := repo.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}
}
