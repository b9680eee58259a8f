package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:10000", "API host, including the tenant subdomain")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("Usage: go run ./cmd/stream_client [-addr roma.localtest.me:10000] <JWT_TOKEN>")
	}

	url := fmt.Sprintf("ws://%s/api/v1/entitlements/stream", *addr)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+flag.Arg(0))
	fmt.Printf("Connecting to %s...\n", url)
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil && resp != nil {
		log.Fatalf("Failed to connect: %v (status %d)", err, resp.StatusCode)
	}
	if err != nil {
		log.Fatal("Failed to connect:", err)
	}
	defer conn.Close()
	conn.SetPingHandler(func(appData string) error {
		fmt.Println("Received ping from server, sending pong")
		return conn.WriteMessage(websocket.PongMessage, nil)
	})

	fmt.Println("Connected! Waiting for entitlement events...")
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			fmt.Printf("%s\n", string(message))
		}
	}()

	select {
	case <-done:
		return
	case <-interrupt:
		fmt.Println("\nDisconnecting...")

		// Send close message
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Println("Write close:", err)
			return
		}

		// Wait for the connection to close
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}
