package main

import (
	"os"

	"github.com/kjk/seqfile/config"
	"github.com/kjk/seqfile/log"
	"github.com/kjk/seqfile/storage"

	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func (a *app) storageOptions() *storage.Options {
	return a.cfg.StorageOptions()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "seqfile",
		Short: "seqfile - write and read record containers",
		Long: `seqfile writes text into record containers and reads them back.

Sources and destinations can be local paths or urls:
  mem://, s3://bucket/, hdfs://namenode:8020/, sftp://user@host/, http(s)://
Credentials for remote backends are read from a YAML config file
(--config or $SEQFILE_CONFIG).`,
		SilenceUsage: true,
		// main() logs the error
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			log.Verbose = a.verbose || cfg.Log.Verbose
			if cfg.Log.Dir != "" {
				log.Init(&log.Config{Dir: cfg.Log.Dir})
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path of YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(newWriteCmd(a))
	rootCmd.AddCommand(newDumpCmd(a))
	rootCmd.AddCommand(newStatCmd(a))
	rootCmd.AddCommand(newPackCmd(a))
	rootCmd.AddCommand(newUnpackCmd(a))
	rootCmd.AddCommand(newListCmd(a))
	return rootCmd
}

// closeBackend disconnects from remote storage, logging the error
func closeBackend(b storage.Backend) {
	err := storage.Close(b)
	log.IfErrf(err, "failed to close storage: %s", err)
}

// execute runs the command and logs the error, if any.
// With log.dir configured the error also goes to the errors log.
func execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	if err != nil {
		log.Errorf("error: %s", err)
	}
	log.Close()
	return err
}

func main() {
	if err := execute(newRootCmd()); err != nil {
		os.Exit(1)
	}
}
