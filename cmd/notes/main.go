package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/notes-search/notes/internal/logging"
	"github.com/notes-search/notes/internal/notesclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix      = "NOTES"
	defaultAPIURL  = "http://localhost:3001"
	requestTimeout = 30 * time.Second
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var (
	errMissingToken  = errors.New("a bearer token is required (--token or NOTES_CLIENT_TOKEN)")
	errUnknownOutput = errors.New("output must be one of table, json, yaml")
)

func main() {
	configViper := viper.New()
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()
	configViper.SetDefault("client.api_url", defaultAPIURL)
	configViper.SetDefault("log.level", "warn")
	configViper.SetDefault("client.output", outputTable)

	rootCmd := &cobra.Command{
		Use:           "notes",
		Short:         "Command line client for the notes API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().String("api-url", defaultAPIURL, "Notes API base URL")
	rootCmd.PersistentFlags().String("token", "", "Bearer token")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output", "o", outputTable, "Output format (table, json, yaml)")
	mustBind(configViper, rootCmd, "client.api_url", "api-url")
	mustBind(configViper, rootCmd, "client.token", "token")
	mustBind(configViper, rootCmd, "log.level", "log-level")
	mustBind(configViper, rootCmd, "client.output", "output")

	app := &cliApp{viper: configViper}
	rootCmd.AddCommand(
		app.listCommand(),
		app.tagsCommand(),
		app.createCommand(),
		app.updateCommand(),
		app.deleteCommand(),
		app.summarizeCommand(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func mustBind(configViper *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := configViper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

type cliApp struct {
	viper *viper.Viper
}

func (a *cliApp) newCache() (*notesclient.Cache, error) {
	token := strings.TrimSpace(a.viper.GetString("client.token"))
	if token == "" {
		return nil, errMissingToken
	}
	client, err := notesclient.NewAPIClient(notesclient.APIClientConfig{
		BaseURL: a.viper.GetString("client.api_url"),
		Tokens:  notesclient.StaticToken(token),
	})
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(a.viper.GetString("log.level"), "")
	if err != nil {
		logger = zap.NewNop()
	}
	return notesclient.NewCache(client, logger)
}

func (a *cliApp) listCommand() *cobra.Command {
	var (
		query string
		tags  []string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, optionally filtered by text and tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.newCache()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if err := cache.Load(ctx); err != nil {
				return err
			}
			cache.SetSearchQuery(query)
			cache.SetSelectedTags(tags)
			return a.render(cmd.OutOrStdout(), cache.FilteredNotes())
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Case-insensitive text to match in title or content")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Only show notes carrying every given tag")
	return cmd
}

func (a *cliApp) tagsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "Print every tag in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.newCache()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if err := cache.Load(ctx); err != nil {
				return err
			}
			for _, tag := range cache.TagIndex() {
				fmt.Fprintln(cmd.OutOrStdout(), tag)
			}
			return nil
		},
	}
}

type draftFlags struct {
	title   string
	content string
	tags    []string
	summary string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Note title")
	cmd.Flags().StringVar(&f.content, "content", "", "Note body")
	cmd.Flags().StringSliceVarP(&f.tags, "tag", "t", nil, "Tag (repeatable)")
	cmd.Flags().StringVar(&f.summary, "summary", "", "Optional summary")
}

func (f *draftFlags) draft(cmd *cobra.Command) notesclient.Draft {
	draft := notesclient.Draft{Title: f.title, Content: f.content, Tags: f.tags}
	if cmd.Flags().Changed("summary") {
		summary := f.summary
		draft.Summary = &summary
	}
	return draft
}

func (a *cliApp) createCommand() *cobra.Command {
	flags := &draftFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a note",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.newCache()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			created, err := cache.Create(ctx, flags.draft(cmd))
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), []notesclient.Note{created})
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *cliApp) updateCommand() *cobra.Command {
	flags := &draftFlags{}
	cmd := &cobra.Command{
		Use:   "update <note-id>",
		Short: "Replace every field of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.newCache()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			updated, err := cache.Update(ctx, args[0], flags.draft(cmd))
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), []notesclient.Note{updated})
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *cliApp) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <note-id>",
		Short: "Permanently delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.newCache()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if err := cache.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		},
	}
}

func (a *cliApp) summarizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize [text]",
		Short: "Summarize text given as arguments or on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			if content == "" {
				input, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				content = string(input)
			}
			cache, err := a.newCache()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			result, err := cache.Summarize(ctx, content)
			if err != nil {
				return err
			}
			if !result.Generated {
				fmt.Fprintln(cmd.ErrOrStderr(), "summary could not be generated")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Summary)
			return nil
		},
	}
}

func (a *cliApp) render(out io.Writer, notes []notesclient.Note) error {
	switch strings.ToLower(a.viper.GetString("client.output")) {
	case outputTable, "":
		return printNotes(out, notes)
	case outputJSON:
		return printJSON(out, notes)
	case outputYAML:
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(notes)
	default:
		return errUnknownOutput
	}
}

func printNotes(out io.Writer, notes []notesclient.Note) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTITLE\tTAGS\tUPDATED")
	for _, note := range notes {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			note.ID, note.Title, strings.Join(note.Tags, ","), note.UpdatedAt.Local().Format(time.RFC3339))
	}
	return writer.Flush()
}

func printJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
