package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	WSURL     = "ws://localhost:8080/ws/chat"
	PairCount = 250 // ⚠️ Start small. 250 pairs = 500 sockets.
	MsgCount  = 20  // Messages per user
)

func main() {
	dsn := os.Getenv("DB_DSN")
	secret := os.Getenv("JWT_SECRET")
	if dsn == "" || secret == "" {
		log.Fatal("❌ DB_DSN and JWT_SECRET must be set")
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("❌ DB open failed: %v", err)
	}
	defer conn.Close()

	log.Printf("🔥 STARTING STRESS TEST: %d users, %d messages each...", PairCount*2, MsgCount)

	institutionID := uuid.NewString()
	var wg sync.WaitGroup
	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(conn, secret, institutionID, pairID)
		}(i)
	}

	wg.Wait()
	log.Println("✅ LOAD TEST COMPLETE")
}

func runPair(conn *sql.DB, secret, institutionID string, pairID int) {
	idA := seedUser(conn, institutionID, fmt.Sprintf("u_%d_a", pairID))
	idB := seedUser(conn, institutionID, fmt.Sprintf("u_%d_b", pairID))
	if idA == "" || idB == "" {
		return
	}

	tokenA := signToken(secret, idA, institutionID)
	tokenB := signToken(secret, idB, institutionID)

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spamChat(&wsWg, tokenA, idA, idB)
	go spamChat(&wsWg, tokenB, idB, idA)
	wsWg.Wait()
}

// seedUser inserts a throwaway directory entry so the recipient checks pass.
func seedUser(conn *sql.DB, institutionID, name string) string {
	id := uuid.NewString()
	query := `
		INSERT INTO users (id, institution_id, email, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, 'loadtest', 'professor')
		ON CONFLICT (institution_id, email) DO NOTHING
	`
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := conn.ExecContext(ctx, query, id, institutionID, name+"@loadtest.local", name); err != nil {
		log.Printf("❌ Seed failed [%s]: %v", name, err)
		return ""
	}
	return id
}

func signToken(secret, userID, institutionID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":            userID,
		"name":           "Load Tester",
		"institution_id": institutionID,
		"jti":            uuid.NewString(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	})
	ss, _ := token.SignedString([]byte(secret))
	return ss
}

func spamChat(wg *sync.WaitGroup, token, userID, recipientID string) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", WSURL, token), nil)
	if err != nil {
		log.Printf("❌ WS Connect Fail [%s]: %v", userID, err)
		return
	}
	defer conn.Close()

	// Drain inbound frames so the server-side buffer never fills.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < MsgCount; i++ {
		frame := map[string]interface{}{
			"type":         "chat_message",
			"recipient_id": recipientID,
			"content":      fmt.Sprintf("LoadTest Msg %d from %s", i, userID),
		}
		payload, _ := json.Marshal(frame)
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("❌ Send Fail [%s]: %v", userID, err)
			break
		}
		// Small sleep to avoid an instant localhost bottleneck
		time.Sleep(10 * time.Millisecond)
	}
	log.Printf("✅ %s finished sending %d msgs", userID, MsgCount)
}
