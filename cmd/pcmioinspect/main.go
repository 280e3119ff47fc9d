// Command pcmioinspect is a small read-only companion that attaches
// to a running session's status endpoint and prints a YAML snapshot
// of its state, pointers and delay. It never touches the control
// channel — purely observational.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/samoyed-audio/pcmio/pcm"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

func main() {
	addr := pflag.StringP("addr", "a", "127.0.0.1:9101", "status endpoint address")
	watch := pflag.DurationP("watch", "w", 0, "repeat the query on this interval instead of querying once")
	saveDir := pflag.StringP("save-dir", "s", "", "directory to also save each snapshot to, named by --save-format")
	saveFormat := pflag.StringP("save-format", "T", "%Y%m%dT%H%M%S.yaml", "strftime format for --save-dir filenames")
	help := pflag.BoolP("help", "h", false, "display help text")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "pcmioinspect: dump a running pcmio session's status")
		fmt.Fprintln(os.Stderr, "\nUsage: pcmioinspect [options]")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}

	if *watch <= 0 {
		if err := inspectOnce(*addr, *saveDir, *saveFormat); err != nil {
			fmt.Fprintln(os.Stderr, "pcmioinspect:", err)
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(*watch)
	defer ticker.Stop()
	for {
		if err := inspectOnce(*addr, *saveDir, *saveFormat); err != nil {
			fmt.Fprintln(os.Stderr, "pcmioinspect:", err)
		}
		<-ticker.C
	}
}

func inspectOnce(addr, saveDir, saveFormat string) error {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	snap, err := pcm.FetchStatus(conn)
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}

	enc, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	os.Stdout.Write(enc)
	fmt.Println("---")

	if saveDir == "" {
		return nil
	}
	return saveSnapshot(saveDir, saveFormat, enc)
}

func saveSnapshot(dir, format string, enc []byte) error {
	name, err := strftime.Format(format, time.Now())
	if err != nil {
		return fmt.Errorf("format snapshot filename: %w", err)
	}
	path := dir + string(os.PathSeparator) + name
	if err := os.WriteFile(path, enc, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
