// Command stereossim checks whether a raw NV12 frame matches a stereo
// layout by measuring the SSIM between its two eye regions.
//
// Usage:
//
//	stereossim validate <input-file> <width> <height> <layout-code>
//
// Layout codes are 0 (2D), 1 (side-by-side) and 2 (top-bottom). The exit
// status is 0 when the measurement completed, whatever its verdict, 1 for
// usage errors and 2 when the measurement itself failed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
