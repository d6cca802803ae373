package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spinhall/casino-server/games/roulette"
	"github.com/spinhall/casino-server/network"
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, payload interface{}) error {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return err
		}
	}
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	token := flag.String("token", "", "auth token")
	game := flag.String("game", "roulette", "game to play: roulette or duckrace")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws", RawQuery: "token=" + *token}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
		}
	}()

	log.Println("Sending Create Room request...")
	if err := send(c, network.MsgTypeCreateRoom, &network.CreateRoomReq{Game: *game, Stake: 100}); err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Commands: bet <number> <amount> | red <amount> | remove <index> | clear | lock | ready | leave")

	reader := bufio.NewReader(os.Stdin)
	inputs := make(chan string)
	go func() {
		for {
			text, err := reader.ReadString('\n')
			if err != nil {
				close(inputs)
				return
			}
			inputs <- strings.TrimSpace(text)
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case text, ok := <-inputs:
			if !ok {
				return
			}
			if err := handleInput(c, text); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}

func handleInput(c *websocket.Conn, text string) error {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "bet":
		if len(fields) != 3 {
			log.Println("usage: bet <number> <amount>")
			return nil
		}
		number, _ := strconv.Atoi(fields[1])
		amount, _ := strconv.ParseInt(fields[2], 10, 64)
		return send(c, network.MsgTypePlaceBet, &network.PlaceBetReq{Bet: roulette.Bet{
			Type:    roulette.BetStraight,
			Numbers: []int{number},
			Amount:  amount,
		}})
	case "red":
		if len(fields) != 2 {
			log.Println("usage: red <amount>")
			return nil
		}
		amount, _ := strconv.ParseInt(fields[1], 10, 64)
		return send(c, network.MsgTypePlaceBet, &network.PlaceBetReq{Bet: roulette.Bet{
			Type:   roulette.BetRed,
			Amount: amount,
		}})
	case "remove":
		if len(fields) != 2 {
			log.Println("usage: remove <index>")
			return nil
		}
		index, _ := strconv.Atoi(fields[1])
		return send(c, network.MsgTypeRemoveBet, &network.RemoveBetReq{Index: index})
	case "clear":
		return send(c, network.MsgTypeClearBets, nil)
	case "lock":
		return send(c, network.MsgTypeLockBets, nil)
	case "ready":
		return send(c, network.MsgTypeSetReady, &network.SetReadyReq{Ready: true})
	case "leave":
		return send(c, network.MsgTypeLeaveRoom, nil)
	default:
		log.Printf("unknown command %q", fields[0])
	}
	return nil
}
