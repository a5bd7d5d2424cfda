package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/topicbench/offtopic/internal/config"
	"github.com/topicbench/offtopic/internal/store"
)

var savesDir string

var savesCmd = &cobra.Command{
	Use:   "saves",
	Short: "Inspect saved annotation sessions",
}

var savesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List save files in the saves directory",
	RunE:  runSavesList,
}

func init() {
	savesCmd.PersistentFlags().StringVar(&savesDir, "dir", "", "saves directory (default: OFFTOPIC_SAVE_DIR)")
	savesCmd.AddCommand(savesListCmd)
	rootCmd.AddCommand(savesCmd)
}

func runSavesList(cmd *cobra.Command, args []string) error {
	dir := savesDir
	if dir == "" {
		dir = config.Load().SaveDir
	}

	st := store.New(dir)
	names, err := st.List()
	if err != nil {
		return err
	}

	for _, name := range names {
		file, err := store.ReadFile(filepath.Join(st.Dir(), name))
		if err != nil {
			fmt.Printf("%s\t(unreadable: %v)\n", name, err)
			continue
		}
		fmt.Printf("%s\t%d annotations\tsaved %s\n",
			name, len(file.Annotations), file.SavedAt.Format(time.RFC3339))
	}
	if len(names) == 0 {
		fmt.Printf("no saves in %s\n", dir)
	}
	return nil
}
