package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var submitPriority int

var submitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Submit a single audio file for transcription",
	Args:  cobra.ExactArgs(1),
	Run:   runSubmit,
}

var statusCmd = &cobra.Command{
	Use:   "status [jobID]",
	Short: "Look up a job's status",
	Args:  cobra.ExactArgs(1),
	Run:   runStatus,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [jobID]",
	Short: "Cancel and remove a job",
	Args:  cobra.ExactArgs(1),
	Run:   runDelete,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deleteCmd)
	submitCmd.Flags().IntVarP(&submitPriority, "priority", "p", 0, "job priority")
}

func runSubmit(cmd *cobra.Command, args []string) {
	jobID, err := SubmitFile(args[0], submitPriority)
	if err != nil {
		fmt.Printf("Submit failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(jobID)
}

func runStatus(cmd *cobra.Command, args []string) {
	status, err := JobStatus(args[0])
	if err != nil {
		fmt.Printf("Status lookup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(status)
}

func runDelete(cmd *cobra.Command, args []string) {
	if err := DeleteJob(args[0]); err != nil {
		fmt.Printf("Delete failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}
