package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	signData     string
	signDataFile string
	signList     bool
)

var signCmd = &cobra.Command{
	Use:   "sign <file-id>",
	Short: "E-sign a file, or list its signatures",
	Long: `Attach your e-signature to a file. A user signs a file once; the
creator may sign again only after the file was returned to them by a
re-sign authority.

Examples:
  efilingctl sign <file-id> --data "<base64 signature>"
  efilingctl sign <file-id> --data-file signature.txt
  efilingctl sign <file-id> --list`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fileID, err := parseID("file id", args[0])
		if err != nil {
			fail("%v", err)
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()
		client := newClient()

		if signList {
			signatures, err := client.Signatures(ctx, fileID)
			if err != nil {
				failAPI("Failed to list signatures", err)
			}
			if emitJSON(signatures) {
				return
			}
			if len(signatures) == 0 {
				fmt.Println("📭 File has not been signed")
				return
			}
			fmt.Printf("✍️  %d signature(s):\n\n", len(signatures))
			for _, s := range signatures {
				fmt.Printf("  %s  %-6s %s\n", s.SignedAt.Format("2006-01-02 15:04"), s.Role, s.UserID)
			}
			return
		}

		data := signData
		if signDataFile != "" {
			raw, err := os.ReadFile(signDataFile)
			if err != nil {
				fail("Failed to read signature file: %v", err)
			}
			data = strings.TrimSpace(string(raw))
		}
		if data == "" {
			fail("Signature data is required (--data or --data-file)")
		}

		sig, err := client.SignFile(ctx, fileID, data)
		if err != nil {
			failAPI("Failed to sign file", err)
		}
		if emitJSON(sig) {
			return
		}
		fmt.Printf("✅ Signed as %s at %s\n", sig.Role, sig.SignedAt.Format("2006-01-02 15:04:05"))
	},
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVar(&signData, "data", "", "Signature payload")
	signCmd.Flags().StringVar(&signDataFile, "data-file", "", "Read the signature payload from a file")
	signCmd.Flags().BoolVar(&signList, "list", false, "List the file's signatures instead of signing")
}
