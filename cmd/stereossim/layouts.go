package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/stereossim"
)

var layoutsCmd = &cobra.Command{
	Use:   "layouts",
	Short: "List the stereo layout codes",
	Run: func(cmd *cobra.Command, args []string) {
		p := message.NewPrinter(language.English)
		for _, l := range stereossim.Layouts() {
			left, _ := l.EyeRect(stereossim.EyeLeft)
			right, _ := l.EyeRect(stereossim.EyeRight)
			p.Fprintf(cmd.OutOrStdout(), "%d  %-8s %-9s left=%v right=%v\n",
				l.Code(), l.ShortName(), l.Name(), left, right)
		}
	},
}

func init() {
	rootCmd.AddCommand(layoutsCmd)
}
