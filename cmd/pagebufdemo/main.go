// Command pagebufdemo is a small cobra-driven exercise of the buffer
// manager: open a file, pin and write a page, flush it, and print the
// replacement queues. It stands in for the teacher's bare main.go, which
// only serialized one page struct — this drives the real manager end to
// end the way platform/cmd/cli wires cobra for bunbase.
package main

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nvquocbuu/pagebuf/internal/bufmgr"
	"github.com/nvquocbuu/pagebuf/internal/bufmgrlog"
	"github.com/nvquocbuu/pagebuf/internal/storage/fsys"
)

var (
	capacity     int
	pageSizeBits int
)

var rootCmd = &cobra.Command{
	Use:   "pagebufdemo",
	Short: "Exercise the paged buffer manager against a backing file",
}

var runCmd = &cobra.Command{
	Use:   "run <path>",
	Short: "Open path, write one page, flush, and print the replacement queues",
	Args:  cobra.ExactArgs(1),
	RunE:  runDemo,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&capacity, "capacity", 10, "buffer pool capacity, in frames")
	rootCmd.PersistentFlags().IntVar(&pageSizeBits, "page-size-bits", 13, "page size as a power of two (13 = 8KiB)")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	requestID := uuid.New()
	log := bufmgrlog.New(os.Stderr, slog.LevelDebug).With("request_id", requestID.String())

	bm, err := bufmgr.NewBufferManager(fsys.OSFileSystem{}, capacity, pageSizeBits, log)
	if err != nil {
		return err
	}

	ref, err := bm.OpenFile(args[0])
	if err != nil {
		return err
	}
	defer ref.Close()

	pageSize := bm.PageSize()
	if err := ref.Truncate(int64(pageSize)); err != nil {
		return err
	}

	page, err := ref.FixPage(0, true)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(page.GetData()[:8], 123)
	if err := page.MarkAsDirty(); err != nil {
		return err
	}
	if err := page.Release(); err != nil {
		return err
	}

	if err := ref.Flush(); err != nil {
		return err
	}

	log.Info("flushed page 0", "file_id", ref.GetFileID())
	fmt.Printf("FIFO: %v\n", bm.GetFIFOList())
	fmt.Printf("LRU:  %v\n", bm.GetLRUList())
	for addr, info := range bm.GetFrames() {
		fmt.Printf("frame %d: addr=%v dirty=%v users=%v queue=%s\n", info.FrameID, addr, info.Dirty, info.Users, info.Queue)
	}

	return bm.Shutdown()
}
