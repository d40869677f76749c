// decision-validator verifies a COSE_Sign1 decision record produced by
// an auctioneer against the auctioneer's public key.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/siot-decada-robotics/rmf-ros2/validation"
)

func main() {
	var (
		decisionInput = flag.String("decision", "", "Signed decision: base64 COSE_Sign1 (inline or file path)")
		keyPath       = flag.String("public-key", "", "Path to the auctioneer's PEM public key")
		outputFormat  = flag.String("format", "text", "Output format: text or json")
	)
	flag.Parse()

	if *decisionInput == "" || *keyPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: decision-validator --decision <b64-or-file> --public-key <pem-file> [--format text|json]\n")
		os.Exit(1)
	}

	signed, err := readDecisionInput(*decisionInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading decision: %v\n", err)
		os.Exit(2)
	}

	publicKey, err := validation.LoadVerifyingKey(*keyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading public key: %v\n", err)
		os.Exit(2)
	}

	record, err := validation.VerifyDecision(signed, publicKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(1)
	}

	if *outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(record); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
			os.Exit(2)
		}
		return
	}

	fmt.Printf("VALID decision record\n")
	fmt.Printf("  Task:       %s\n", record.TaskID)
	fmt.Printf("  Outcome:    %s\n", record.Outcome)
	if record.WinnerFleet != "" {
		fmt.Printf("  Winner:     fleet %s robot %q\n", record.WinnerFleet, record.WinnerRobot)
	}
	fmt.Printf("  Auctioneer: %s\n", record.Auctioneer)
	fmt.Printf("  Decided at: %s\n", record.DecidedAt)
}

// readDecisionInput accepts either a base64 string or a path to a file
// containing one.
func readDecisionInput(input string) ([]byte, error) {
	text := input
	if _, err := os.Stat(input); err == nil {
		fileBytes, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		text = string(fileBytes)
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(text))
}
