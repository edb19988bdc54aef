package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kimhsiao/leadbook/internal/config"
	"github.com/kimhsiao/leadbook/internal/logging"
	"github.com/kimhsiao/leadbook/internal/models"
	"github.com/kimhsiao/leadbook/internal/services"
)

// annotationNoStore marks commands that run without opening the store.
const annotationNoStore = "leadbook/no-store"

// app carries what the commands share: settings, logger and the open store.
type app struct {
	v        *viper.Viper
	settings *config.Settings
	log      *logging.Logger
	leads    *services.LeadService
	stderr   io.Writer
}

// newRootCommand builds the command tree.
func newRootCommand(a *app) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "leads",
		Short:         "Contractor lead book",
		Long:          `Keep contractor leads in a local store and export them as CSV, PDF, TXT, HTML or backup archives.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, configFile)
		},
	}

	setupFlags(root, a.v, &configFile)

	root.AddCommand(
		addCommand(a),
		listCommand(a),
		showCommand(a),
		setCommand(a),
		deleteCommand(a),
		exportCommand(a),
		backupCommand(a),
		restoreCommand(a),
		configCommand(a),
	)
	return root
}

// setupFlags defines the global flags and binds them to their settings keys.
func setupFlags(root *cobra.Command, v *viper.Viper, configFile *string) {
	pf := root.PersistentFlags()
	pf.StringVar(configFile, "config", "", "config file (default: ./config.yaml, then the user config directory)")
	pf.String("data", "", "lead store file; the sqlite backend keeps leads.db in its directory")
	pf.String("backend", "", "storage backend: json or sqlite")
	pf.String("log-level", "", "log level: debug, info, warn or error")

	// Lookup cannot fail for flags defined just above.
	_ = v.BindPFlag("storage.path", pf.Lookup("data"))
	_ = v.BindPFlag("storage.backend", pf.Lookup("backend"))
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
}

// setup loads settings and, unless the command opts out, opens the store.
func (a *app) setup(cmd *cobra.Command, configFile string) error {
	settings, err := config.Load(a.v, configFile)
	if err != nil {
		return err
	}
	a.settings = settings
	a.log = logging.New(a.stderr, logging.LogLevel(settings.Log.Level), logging.Format(settings.Log.Format))

	if cmd.Annotations[annotationNoStore] != "" {
		return nil
	}

	svc, err := services.Open(settings, a.log)
	if err != nil {
		return err
	}
	a.leads = svc
	if warning := svc.LoadWarning(); warning != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: started with an empty lead list: %v\n", warning)
	}
	return nil
}

// close saves pending changes and releases the store.
func (a *app) close() error {
	if a.leads == nil {
		return nil
	}
	err := a.leads.Close()
	a.leads = nil
	return err
}

// resolve finds a lead by position ("3") or by ID.
func (a *app) resolve(ref string) (models.Lead, int, error) {
	if index, err := strconv.Atoi(ref); err == nil {
		lead, err := a.leads.At(index)
		return lead, index, err
	}
	return a.leads.Get(ref)
}
