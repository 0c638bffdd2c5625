// Command tickctl is a CLI client for tickforged, mirroring the teacher's
// (saiputravu-Exchange) cmd/client/client.go shape: parse flags, dial the
// server, and either send one framed submit/cancel message or (for
// -action stream) print the outbound event stream as it arrives. Adapted to tickforge's
// length-prefixed wire schema and role-handshake connection model
// (internal/transport).
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"time"

	"tickforge/internal/admission"
	"tickforge/internal/common"
	"tickforge/internal/priced"
	"tickforge/internal/tickengine"
	"tickforge/internal/transport"

	"github.com/google/uuid"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9101", "address of the tickforged transport")
	action := flag.String("action", "submit", "action: submit | cancel | halt | setref | stream")
	symbol := flag.String("symbol", "AAPL", "symbol")
	orderID := flag.String("order-id", "", "order id (submit/cancel)")
	acctID := flag.String("account-id", "acct1", "account id (submit)")
	sideStr := flag.String("side", "buy", "buy | sell")
	typeStr := flag.String("type", "limit", "limit | market | ioc | fok | postonly")
	priceIdx := flag.Int64("price-idx", 0, "integer price index (limit/postonly orders)")
	qty := flag.Uint64("qty", 10, "quantity")
	halted := flag.Bool("halted", true, "halt state (action=halt)")
	refPrice := flag.Int64("ref-price", 0, "reference price (action=setref)")

	flag.Parse()

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("dial %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	switch strings.ToLower(*action) {
	case "submit":
		if *orderID == "" {
			// Mirrors the teacher's client: an unset order id is filled in
			// client-side with a fresh UUID rather than left to the server.
			*orderID = uuid.New().String()
		}
		if _, err := conn.Write([]byte{0}); err != nil {
			log.Fatalf("role handshake: %v", err)
		}
		req := admission.SubmitRequest{
			OrderID:   *orderID,
			AccountID: *acctID,
			Side:      parseSide(*sideStr),
			Type:      parseOrderType(*typeStr),
			HasPrice:  *typeStr != "market",
			PriceIdx:  priced.Index(*priceIdx),
			Qty:       *qty,
			TsNorm:    time.Now().UnixNano(),
		}
		if err := sendSubmit(conn, *symbol, req); err != nil {
			log.Fatalf("send submit: %v", err)
		}
		fmt.Printf("-> submitted %s %s %d @ idx %d\n", *sideStr, *symbol, *qty, *priceIdx)

	case "cancel":
		if *orderID == "" {
			log.Fatal("-order-id is required for cancel")
		}
		if _, err := conn.Write([]byte{0}); err != nil {
			log.Fatalf("role handshake: %v", err)
		}
		req := tickengine.CancelRequest{OrderID: *orderID, TsNorm: time.Now().UnixNano()}
		if err := sendCancel(conn, *symbol, req); err != nil {
			log.Fatalf("send cancel: %v", err)
		}
		fmt.Printf("-> cancel requested for %s\n", *orderID)

	case "halt":
		if _, err := conn.Write([]byte{0}); err != nil {
			log.Fatalf("role handshake: %v", err)
		}
		if err := sendHalt(conn, *symbol, *halted); err != nil {
			log.Fatalf("send halt: %v", err)
		}
		fmt.Printf("-> halt(%v) for %s\n", *halted, *symbol)

	case "setref":
		if _, err := conn.Write([]byte{0}); err != nil {
			log.Fatalf("role handshake: %v", err)
		}
		if err := sendSetRef(conn, *symbol, *refPrice); err != nil {
			log.Fatalf("send setref: %v", err)
		}
		fmt.Printf("-> setref(%d) for %s\n", *refPrice, *symbol)

	case "stream":
		if _, err := conn.Write([]byte{1}); err != nil {
			log.Fatalf("role handshake: %v", err)
		}
		streamEvents(conn)
		return

	default:
		log.Fatalf("unknown action %q", *action)
	}
}

func parseSide(s string) common.Side {
	if strings.ToLower(s) == "sell" {
		return common.Sell
	}
	return common.Buy
}

func parseOrderType(s string) common.OrderType {
	switch strings.ToLower(s) {
	case "market":
		return common.Market
	case "ioc":
		return common.IOC
	case "fok":
		return common.FOK
	case "postonly":
		return common.PostOnly
	default:
		return common.Limit
	}
}

func writeFrame(conn net.Conn, payload []byte) error {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(payload)))
	if _, err := conn.Write(lenBuf); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

func sendSubmit(conn net.Conn, symbol string, req admission.SubmitRequest) error {
	body := make([]byte, 0, 64)
	body = append(body, byte(len(req.OrderID)))
	body = append(body, byte(len(req.AccountID)))
	body = append(body, byte(req.Side))
	body = append(body, byte(req.Type))
	hasPrice := byte(0)
	if req.HasPrice {
		hasPrice = 1
	}
	body = append(body, hasPrice)
	body = appendU64(body, uint64(req.PriceIdx))
	body = appendU64(body, req.Qty)
	body = appendU64(body, uint64(req.TsNorm))
	body = append(body, []byte(req.OrderID)...)
	body = append(body, []byte(req.AccountID)...)
	return writeFrame(conn, frame(uint16(transport.TypeSubmit), symbol, body))
}

func sendCancel(conn net.Conn, symbol string, req tickengine.CancelRequest) error {
	body := make([]byte, 0, 32)
	body = append(body, byte(len(req.OrderID)))
	body = appendU64(body, uint64(req.TsNorm))
	body = append(body, []byte(req.OrderID)...)
	return writeFrame(conn, frame(uint16(transport.TypeCancel), symbol, body))
}

func sendHalt(conn net.Conn, symbol string, halted bool) error {
	v := byte(0)
	if halted {
		v = 1
	}
	return writeFrame(conn, frame(uint16(transport.TypeHalt), symbol, []byte{v}))
}

func sendSetRef(conn net.Conn, symbol string, refPrice int64) error {
	return writeFrame(conn, frame(uint16(transport.TypeSetRef), symbol, appendU64(nil, uint64(refPrice))))
}

func frame(typ uint16, symbol string, body []byte) []byte {
	out := make([]byte, 0, 3+len(symbol)+len(body))
	tb := make([]byte, 2)
	binary.BigEndian.PutUint16(tb, typ)
	out = append(out, tb...)
	out = append(out, byte(len(symbol)))
	out = append(out, []byte(symbol)...)
	out = append(out, body...)
	return out
}

func appendU64(b []byte, v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return append(b, buf...)
}

// streamEvents reads framed outbound events until the connection closes,
// printing a one-line summary of each.
func streamEvents(conn net.Conn) {
	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(conn, lenBuf); err != nil {
			if err != io.EOF {
				log.Printf("stream ended: %v", err)
			}
			return
		}
		n := binary.BigEndian.Uint32(lenBuf)
		buf := make([]byte, n)
		if _, err := io.ReadFull(conn, buf); err != nil {
			log.Printf("stream ended: %v", err)
			return
		}
		printOutbound(buf)
	}
}

func printOutbound(buf []byte) {
	if len(buf) < 3 {
		return
	}
	typ := binary.BigEndian.Uint16(buf[0:2])
	symLen := int(buf[2])
	if len(buf) < 3+symLen {
		return
	}
	symbol := string(buf[3 : 3+symLen])
	switch typ {
	case 0:
		fmt.Printf("[%s] trade\n", symbol)
	case 1:
		fmt.Printf("[%s] book_delta\n", symbol)
	case 2:
		fmt.Printf("[%s] lifecycle\n", symbol)
	case 3:
		fmt.Printf("[%s] tick_complete\n", symbol)
	default:
		fmt.Printf("[%s] unknown event type %d\n", symbol, typ)
	}
}
