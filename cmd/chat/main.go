// Command chat is a small terminal client for the support channel. It
// resolves a session for the given participant, joins the room and relays
// stdin lines as encrypted messages.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/client"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/config"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/model"
)

func main() {
	var (
		baseURL     = flag.String("server", "http://localhost:3000", "chat server base URL")
		participant = flag.String("participant", "", "participant id (required)")
		senderType  = flag.String("as", "user", "sender type: user or counselor")
		secret      = flag.String("secret", config.DefaultChatSecret, "shared chat secret")
	)
	flag.Parse()

	if *participant == "" {
		fmt.Fprintln(os.Stderr, "missing -participant")
		flag.Usage()
		os.Exit(2)
	}
	sender := model.SenderType(*senderType)
	if !model.ValidSenderType(sender) || sender == model.SenderSystem {
		fmt.Fprintf(os.Stderr, "invalid sender type %q\n", *senderType)
		os.Exit(2)
	}

	updates := make(chan struct{}, 1)
	view, err := client.OpenView(context.Background(), client.ViewOptions{
		BaseURL:       *baseURL,
		ParticipantID: *participant,
		SenderType:    sender,
		Secret:        *secret,
		OnUpdate: func() {
			select {
			case updates <- struct{}{}:
			default:
			}
		},
		OnConnectionChange: func(connected bool) {
			if connected {
				fmt.Println("* connected")
			} else {
				fmt.Println("* connection lost, retrying")
			}
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer view.Close()

	fmt.Printf("session %s as %s\n", view.SessionID, sender)

	// Printing runs off the connection goroutine so a slow terminal cannot
	// stall the read loop.
	go func() {
		shown := 0
		for {
			entries := view.Entries()
			for ; shown < len(entries); shown++ {
				printEntry(entries[shown])
			}
			<-updates
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" {
			return
		}
		if err := view.SendText(text); err != nil {
			fmt.Fprintln(os.Stderr, "send failed:", err)
		}
	}
}

func printEntry(entry client.Entry) {
	marker := ""
	if entry.Pending {
		marker = " (sending)"
	}
	if entry.DecodeFailed {
		marker = " (undecodable)"
	}
	fmt.Printf("[%s]%s %s\n", entry.SenderType, marker, entry.Text)
}
