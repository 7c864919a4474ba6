// cmd/client/main.go
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/models"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/protocol"
)

// Client terminal pour tester le serveur à la main.
// Commandes : ready, leave, start, roll, move <id,...> <dé>,
// choose <siège>, ping, quit. Les frames reçues sont affichées brutes.
func main() {
	addr := flag.String("addr", "ws://localhost:8080"+constants.WSPath, "server websocket url")
	token := flag.String("token", "", "bearer token")
	code := flag.String("code", "", "room code")
	flag.Parse()

	if *token == "" || *code == "" {
		log.Fatal("both -token and -code are required")
	}

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Printf("connection closed: %v", err)
				return
			}
			fmt.Printf("<< %s\n", data)
		}
	}()

	send := func(t constants.MessageType, payload interface{}) {
		f := models.NewFrame(t, payload).WithRequestID(uuid.NewString())
		data, err := protocol.EncodeFrame(f)
		if err != nil {
			log.Printf("encode failed: %v", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("write failed: %v", err)
		}
	}

	send(constants.MsgAuthenticate, models.AuthenticatePayload{Token: *token, RoomCode: *code})

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "ping":
			send(constants.MsgPing, nil)
		case "ready":
			send(constants.MsgToggleReady, nil)
		case "leave":
			send(constants.MsgLeaveRoom, nil)
		case "start":
			send(constants.MsgStartGame, nil)
		case "roll":
			send(constants.MsgGameAction, models.GameActionPayload{Kind: "roll"})
		case "move":
			if len(fields) != 3 {
				fmt.Println("usage: move <token_id,...> <die>")
				continue
			}
			var die int
			if _, err := fmt.Sscanf(fields[2], "%d", &die); err != nil {
				fmt.Println("bad die value")
				continue
			}
			send(constants.MsgGameAction, models.GameActionPayload{
				Kind:     "move",
				TokenIDs: strings.Split(fields[1], ","),
				Die:      die,
			})
		case "choose":
			if len(fields) != 2 {
				fmt.Println("usage: choose <seat>")
				continue
			}
			send(constants.MsgGameAction, models.GameActionPayload{
				Kind:   "capture_choice",
				Target: "seat:" + fields[1],
			})
		case "raw":
			// Payload JSON arbitraire : raw <type> <json>
			if len(fields) < 2 {
				fmt.Println("usage: raw <type> [json]")
				continue
			}
			var payload json.RawMessage
			if len(fields) > 2 {
				payload = json.RawMessage(strings.Join(fields[2:], " "))
			}
			f := &models.Frame{Type: constants.MessageType(fields[1]), Payload: payload}
			data, _ := protocol.EncodeFrame(f)
			conn.WriteMessage(websocket.TextMessage, data)
		case "quit":
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			<-done
			return
		default:
			fmt.Println("commands: ping ready leave start roll move choose raw quit")
		}
	}
}
