// Command qamrx-txgen generates reference symbol streams for
// qamrx-gateway and its test vectors: preamble, length-prefixed
// convolutionally-encoded payload, CRC, tail. Flag layout is grounded
// on doismellburning-samoyed's gen_packets.go (the direwolf AX.25 test
// signal generator): pflag long/short pairs, a packet-count option, an
// optional-file-or-stdin message source, and a built-in default
// message when neither is given.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/n1adj/qamrx/internal/config"
)

func main() {
	var (
		outputFile   = pflag.StringP("output-file", "o", "", "Write the generated I/Q symbol stream here (required).")
		configFile   = pflag.StringP("config", "c", "", "Path to YAML configuration file (default: built-in defaults).")
		packetCount  = pflag.IntP("packet-count", "N", 1, "Repeat the message this many times, each as its own framed packet.")
		quietSymbols = pflag.IntP("quiet-symbols", "q", 8, "Zero-amplitude symbols inserted before each preamble.")
		help         = pflag.BoolP("help", "h", false, "Display help text.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - generate a QAM symbol stream for qamrx-gateway.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s -o out.iq [options] [message-file]\n\n", os.Args[0])
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nAn optional file (or \"-\" for stdin) supplies one payload message per\n")
		fmt.Fprintf(os.Stderr, "line. With no file, a built-in test message is sent -N times.\n")
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}
	if *outputFile == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -o output file is required.")
		pflag.Usage()
		os.Exit(1)
	}

	cfg := config.Default().QAM
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded.QAM
	}

	messages, err := readMessages(pflag.Args(), *packetCount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	out, err := os.Create(*outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: can't open %s: %v\n", *outputFile, err)
		os.Exit(1)
	}
	defer out.Close()

	gen, err := newGenerator(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	w := bufio.NewWriter(out)
	for _, msg := range messages {
		if err := gen.writeQuiet(w, *quietSymbols); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR writing symbols: %v\n", err)
			os.Exit(1)
		}
		if err := gen.writeFrame(w, []byte(msg)); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR writing frame %q: %v\n", msg, err)
			os.Exit(1)
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR flushing output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d packet(s) to %s.\n", len(messages), *outputFile)
}

// readMessages mirrors gen_packets' fallback chain: an explicit file
// (or "-" for stdin) supplies one message per line; with no file, a
// single built-in message is repeated packetCount times.
func readMessages(args []string, packetCount int) ([]string, error) {
	if len(args) == 0 {
		if packetCount < 1 {
			packetCount = 1
		}
		const builtin = "The quick brown fox jumps over the lazy dog"
		msgs := make([]string, packetCount)
		for i := range msgs {
			msgs[i] = fmt.Sprintf("%s (%d/%d)", builtin, i+1, packetCount)
		}
		return msgs, nil
	}

	var r io.Reader
	if args[0] == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("can't open %s: %w", args[0], err)
		}
		defer f.Close()
		r = f
	}

	var msgs []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			msgs = append(msgs, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no messages read from %s", args[0])
	}
	return msgs, nil
}
