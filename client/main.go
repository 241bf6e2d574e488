package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/geoworld/models"
	"github.com/wfunc/geoworld/network"
)

const usage = `commands:
  move <lat> <lng>
  pickup <itemId>        cancel <itemId>
  use <itemId>           drop <itemId>
  attack <playerId> <weaponId> [damage]
  heal <playerId> <itemId> [amount]
  say <text>             name <text>
  avatar <name>          profile [playerId]`

var errUsage = errors.New("bad command")

// parseCommand turns one stdin line into an outbound request. self is the
// player id received in init and is the default profile target.
func parseCommand(line, self string) (interface{}, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errUsage
	}
	cmd, args := fields[0], fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), cmd))

	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%w: %s needs %d argument(s)", errUsage, cmd, n)
		}
		return nil
	}
	optional := func(i int) (*float64, error) {
		if len(args) <= i {
			return nil, nil
		}
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		return &v, nil
	}

	switch cmd {
	case "move":
		if err := need(2); err != nil {
			return nil, err
		}
		lat, err1 := strconv.ParseFloat(args[0], 64)
		lng, err2 := strconv.ParseFloat(args[1], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: move needs two numbers", errUsage)
		}
		return network.UpdatePosition{
			Base:     network.Base{Type: network.MsgUpdatePosition},
			Position: &models.Position{Lat: lat, Lng: lng},
		}, nil
	case "pickup", "cancel", "use", "drop":
		if err := need(1); err != nil {
			return nil, err
		}
		switch cmd {
		case "pickup":
			return network.PickupItem{Base: network.Base{Type: network.MsgPickupItem}, ItemID: args[0]}, nil
		case "cancel":
			return network.CancelCollection{Base: network.Base{Type: network.MsgCancelCollection}, ItemID: args[0]}, nil
		case "use":
			return network.UseItem{Base: network.Base{Type: network.MsgUseItem}, ItemID: args[0]}, nil
		default:
			return network.DropItem{Base: network.Base{Type: network.MsgDropItem}, ItemID: args[0]}, nil
		}
	case "attack":
		if err := need(2); err != nil {
			return nil, err
		}
		damage, err := optional(2)
		if err != nil {
			return nil, err
		}
		return network.AttackPlayer{
			Base:           network.Base{Type: network.MsgAttackPlayer},
			TargetPlayerID: args[0],
			WeaponID:       args[1],
			Damage:         damage,
		}, nil
	case "heal":
		if err := need(2); err != nil {
			return nil, err
		}
		amount, err := optional(2)
		if err != nil {
			return nil, err
		}
		return network.HealPlayer{
			Base:           network.Base{Type: network.MsgHealPlayer},
			TargetPlayerID: args[0],
			ItemID:         args[1],
			HealAmount:     amount,
		}, nil
	case "say":
		return network.ChatMessage{Base: network.Base{Type: network.MsgChatMessage}, Message: &rest}, nil
	case "name":
		if err := need(1); err != nil {
			return nil, err
		}
		return network.UpdateProfile{Base: network.Base{Type: network.MsgUpdateProfile}, Name: &rest}, nil
	case "avatar":
		if err := need(1); err != nil {
			return nil, err
		}
		return network.UpdateAvatar{Base: network.Base{Type: network.MsgUpdateAvatar}, Avatar: args[0]}, nil
	case "profile":
		target := self
		if len(args) > 0 {
			target = args[0]
		}
		if target == "" {
			return nil, fmt.Errorf("%w: no player id yet", errUsage)
		}
		return network.ViewProfile{Base: network.Base{Type: network.MsgViewProfile}, ProfilePlayerID: target}, nil
	}
	return nil, fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func main() {
	addr := flag.String("addr", "localhost:8080", "game server address")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})
	self := make(chan string, 1)

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			var head struct {
				Type     string `json:"type"`
				PlayerID string `json:"playerId"`
			}
			if err := json.Unmarshal(message, &head); err != nil {
				log.Printf("Received invalid frame: %v", err)
				continue
			}
			if head.Type == network.MsgInit {
				self <- head.PlayerID
				log.Printf("Joined as %s", head.PlayerID)
			}
			if head.Type == network.MsgWorldUpdate {
				continue // too noisy
			}
			log.Printf("<- RECV %s: %s", head.Type, string(message))
		}
	}()

	log.Println("Client started.\n" + usage)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var playerID string
	for {
		select {
		case <-done:
			return
		case id := <-self:
			playerID = id
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
		case text, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			msg, err := parseCommand(text, playerID)
			if err != nil {
				log.Printf("%v\n%s", err, usage)
				continue
			}
			if err := c.WriteJSON(msg); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT %s", strings.Fields(text)[0])
		}
	}
}
