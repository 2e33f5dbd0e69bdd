package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rawpreview"
	"rawpreview/logging"
	"rawpreview/rawparser"
)

func main() {
	args := parseArguments()

	command, hasCommand := args["command"]

	if _, ok := args["debug"]; ok {
		logPath := "rawpreview.log"
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath); err != nil {
			fmt.Printf("Warning: failed to set up logging: %v\n", err)
		} else {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
			defer logging.CloseLogger()
		}
	}

	showUsage := !hasCommand
	if hasCommand && (command == "extract" || command == "detect") && args["file"] == "" {
		showUsage = true
	}
	if hasCommand && command == "batch" && args["folder"] == "" {
		showUsage = true
	}
	if showUsage {
		printUsage()
		os.Exit(1)
	}

	switch command {
	case "extract":
		handleExtractCommand(args)
	case "detect":
		handleDetectCommand(args)
	case "batch":
		handleBatchCommand(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleExtractCommand(args map[string]string) {
	filePath := args["file"]

	opts := rawpreview.DefaultOptions()
	if _, ok := args["metadata"]; ok {
		opts.IncludeMetadata = true
	}
	if quality, ok := args["quality"]; ok && quality != "" {
		opts.PreferQuality = rawparser.ParseQuality(quality)
	}

	res := rawpreview.ExtractPreview(filePath, opts)
	if !res.Success {
		fmt.Printf("Extraction failed: %v\n", res.Err)
		os.Exit(1)
	}

	outPath := args["out"]
	if outPath == "" {
		outPath = strings.TrimSuffix(filePath, filepath.Ext(filePath)) + "_preview.jpg"
	}
	if err := os.WriteFile(outPath, res.JPEGData, 0o644); err != nil {
		fmt.Printf("Cannot write %s: %v\n", outPath, err)
		os.Exit(1)
	}

	fmt.Printf("Extracted %s preview (%d bytes, %s) from %s to %s\n",
		res.Format, len(res.JPEGData), res.Preview.Quality, filePath, outPath)
	if res.Warning != "" {
		fmt.Printf("Warning: %s\n", res.Warning)
	}
	for key, value := range res.Metadata {
		fmt.Printf("  %s: %s\n", key, value)
	}
}

func handleDetectCommand(args map[string]string) {
	format := rawpreview.DetectFormat(args["file"])
	fmt.Println(format)
}

func handleBatchCommand(args map[string]string) {
	workers := 0
	if w, ok := args["workers"]; ok {
		if parsed, err := strconv.Atoi(w); err == nil {
			workers = parsed
		}
	}

	entries, summary, err := rawpreview.ExtractDirectory(args["folder"], nil, workers)
	if err != nil {
		fmt.Printf("Batch extraction failed: %v\n", err)
		os.Exit(1)
	}

	for _, entry := range entries {
		if entry.Result.Success {
			fmt.Printf("ok   %s (%s, %d bytes)\n",
				entry.Path, entry.Result.Format, len(entry.Result.JPEGData))
		} else {
			fmt.Printf("FAIL %s: %v\n", entry.Path, entry.Result.Err)
		}
	}
	fmt.Printf("Processed %d files: %d succeeded, %d failed in %v\n",
		summary.Processed, summary.Succeeded, summary.Failed, summary.Elapsed)
}

// parseArguments converts command-line arguments into a map of flags and
// values.
func parseArguments() map[string]string {
	args := make(map[string]string)

	command := ""
	commandIndex := -1
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "extract" || os.Args[i] == "detect" || os.Args[i] == "batch" {
			command = os.Args[i]
			commandIndex = i
			break
		}
	}
	if command != "" {
		args["command"] = command
	}

	for i := 1; i < len(os.Args); i++ {
		if i == commandIndex {
			continue
		}
		arg := os.Args[i]

		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			args[strings.TrimPrefix(parts[0], "--")] = parts[1]
			continue
		}
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")
			if i+1 >= len(os.Args) || strings.HasPrefix(os.Args[i+1], "--") {
				args[flagName] = "true"
			} else {
				args[flagName] = os.Args[i+1]
				i++
			}
		}
	}

	return args
}

func printUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s extract --file=PATH [--out=PATH] [--quality=thumbnail|preview|full] [--metadata] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s detect --file=PATH\n", os.Args[0])
	fmt.Printf("  %s batch --folder=PATH [--workers=N] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --file        : Path to a RAW file\n")
	fmt.Printf("  --folder      : Path to a folder of RAW files\n")
	fmt.Printf("  --out         : Output path for the extracted JPEG (default: <file>_preview.jpg)\n")
	fmt.Printf("  --quality     : Preferred preview quality (default: preview)\n")
	fmt.Printf("  --workers     : Parallel extractions for batch mode\n")
	fmt.Printf("  --metadata    : Attach exiftool metadata to the output\n")
	fmt.Printf("  --debug       : Enable debug logging\n")
	fmt.Printf("  --logfile     : Custom log file path (default: rawpreview.log)\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s extract --file=/photos/IMG_0042.CR2 --out=thumb.jpg\n", os.Args[0])
	fmt.Printf("  %s batch --folder=/photos --workers=4\n", os.Args[0])
}
