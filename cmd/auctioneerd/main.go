// auctioneerd runs a task-bidding auctioneer on a socket transport hub.
// Fleets and task sources connect to the hub and speak the bidapi wire
// protocol.
//
// Configuration (environment):
//
//	AUCTIONEER_LISTEN_ADDR    TCP listen address (e.g. ":7430"); or
//	AUCTIONEER_VSOCK_PORT     vsock port, for enclave-style deployments
//	AUCTIONEER_EVALUATOR      least-marginal-cost | least-total-cost | quickest-finish
//	AUCTIONEER_BID_WINDOW_MS  default bidding window in milliseconds
//	AUCTIONEER_MAX_CONNS      maximum concurrent hub peers
//	AUCTIONEER_SIGNING_KEY    optional PEM EC private key for signing decisions
//	AUCTIONEER_ID             signer label in decision records
package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/siot-decada-robotics/rmf-ros2/bidding"
	"github.com/siot-decada-robotics/rmf-ros2/dispatch"
	"github.com/siot-decada-robotics/rmf-ros2/transport"
	"github.com/siot-decada-robotics/rmf-ros2/validation"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("ERROR: %v", err)
	}
}

func run() error {
	listener, err := openListener()
	if err != nil {
		return err
	}

	evaluatorName := getEnvDefault("AUCTIONEER_EVALUATOR", bidding.PolicyLeastMarginalCost)
	evaluator, err := bidding.EvaluatorForName(evaluatorName)
	if err != nil {
		return err
	}
	log.Printf("INFO: using evaluator policy %s", evaluatorName)

	windowMillis, err := getEnvIntDefault("AUCTIONEER_BID_WINDOW_MS", 2000)
	if err != nil {
		return err
	}
	maxConns, err := getEnvIntDefault("AUCTIONEER_MAX_CONNS", 64)
	if err != nil {
		return err
	}

	hub := transport.NewHub(listener, maxConns)
	go func() {
		if err := hub.Serve(); err != nil {
			log.Printf("ERROR: transport hub stopped: %v", err)
		}
	}()

	// The auctioneer joins its own hub as a regular peer.
	client, err := transport.Dial(listener.Addr().String())
	if err != nil {
		return fmt.Errorf("connect auctioneer to hub: %w", err)
	}

	adapterConfig := dispatch.Config{
		Transport:     client,
		DefaultWindow: time.Duration(windowMillis) * time.Millisecond,
		AuctioneerID:  getEnvDefault("AUCTIONEER_ID", "auctioneerd"),
	}
	if keyPath := os.Getenv("AUCTIONEER_SIGNING_KEY"); keyPath != "" {
		key, err := validation.LoadSigningKey(keyPath)
		if err != nil {
			return err
		}
		adapterConfig.SigningKey = key
		publicPEM, err := validation.PublicKeyPEM(key)
		if err != nil {
			return err
		}
		log.Printf("INFO: signing decisions; verifying key:\n%s", publicPEM)
	}

	adapter := dispatch.NewAdapter(adapterConfig)
	auctioneer := bidding.NewAuctioneer(bidding.Config{
		Evaluator: evaluator,
		Announcer: adapter,
		OutcomeFunc: func(outcome bidding.Outcome) {
			log.Printf("INFO: outcome for task %s: %s", outcome.TaskID, outcome.Kind)
		},
	})
	defer auctioneer.Close()
	adapter.Bind(auctioneer)

	log.Printf("INFO: auctioneer ready (default bid window %dms)", windowMillis)
	select {}
}

func openListener() (net.Listener, error) {
	if addr := os.Getenv("AUCTIONEER_LISTEN_ADDR"); addr != "" {
		return transport.Listen(addr)
	}
	if portValue := os.Getenv("AUCTIONEER_VSOCK_PORT"); portValue != "" {
		port, err := strconv.ParseUint(portValue, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value for AUCTIONEER_VSOCK_PORT: %s", portValue)
		}
		return transport.ListenVsock(uint32(port))
	}
	return nil, fmt.Errorf("set AUCTIONEER_LISTEN_ADDR or AUCTIONEER_VSOCK_PORT")
}

func getEnvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvIntDefault(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}
	log.Printf("INFO: using %s=%d from environment", key, intValue)
	return intValue, nil
}
