package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "transe",
	Short: "TransE knowledge graph embedding",
	Long: `Learns entity and relation embeddings with the translation principle h + r ≈ t,
trained with a margin ranking loss against corrupted triples.

Input (under --data_dir):
	entity2id.txt     name<TAB>id
	relation2id.txt   name<TAB>id
	<mode>.txt        head<TAB>tail<TAB>relation

Every setting can also come from a config file (--config) or TRANSE_* environment
variables, e.g. TRANSE_TRAIN_EPOCHS=100.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.AddCommand(trainCmd, scoreCmd)
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
