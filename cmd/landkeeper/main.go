package main

import (
	"context"
	"encoding/json"
	"log"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/landkeeper/internal/codec"
	"github.com/rawblock/landkeeper/internal/config"
	"github.com/rawblock/landkeeper/internal/errs"
	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/landkeeper"
	"github.com/rawblock/landkeeper/internal/landregistry"
	"github.com/rawblock/landkeeper/internal/recorder"
	"github.com/rawblock/landkeeper/internal/transport"
	"github.com/rawblock/landkeeper/internal/wire"
	"github.com/rawblock/landkeeper/pkg/demoland"
)

// anonymousResolver reads the player identity straight off the connection's
// own query string (?player=name) rather than validating a token — fine for
// a reference binary, never for a production deployment, which would swap
// this out for a resolver backed by whatever issues real session tokens.
type anonymousResolver struct{}

func (anonymousResolver) Resolve(path, uri string) (*transport.AuthenticatedInfo, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, errs.New(errs.Unauthorized, "malformed join uri")
	}
	player := u.Query().Get("player")
	if player == "" {
		return nil, errs.New(errs.Unauthorized, "join uri must set ?player=<name>")
	}
	return &transport.AuthenticatedInfo{PlayerID: ids.PlayerID(player)}, nil
}

// actionEnvelope is the wire shape of one inbound action frame.
type actionEnvelope struct {
	ActionType string      `json:"action_type"`
	Payload    interface{} `json:"payload"`
}

func main() {
	log.Println("Starting landkeeper reference server...")

	reg := landregistry.New()
	demoland.Register(reg)

	cfg := config.FromEnv()
	recCfg := config.RecorderFromEnv()
	reg.SetRecorder(buildRecorder(recCfg))

	resolveAdapter := func(c *gin.Context) (*transport.Adapter, error) {
		instanceID := c.Param("instance")
		if instanceID == "" {
			return nil, errs.New(errs.InvalidAction, "missing arena instance id")
		}
		land := ids.LandID{LandType: demoland.LandTypeName, InstanceID: instanceID}
		_, adapter, err := reg.GetOrCreate(land, cfg)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	}

	onAction := func(a *transport.Adapter, sessionID ids.SessionID, frame []byte) {
		var env actionEnvelope
		if err := json.Unmarshal(frame, &env); err != nil {
			log.Printf("dropping malformed action frame from session %s: %v", sessionID, err)
			return
		}
		player, client, ok := a.PlayerForSession(sessionID)
		if !ok {
			return
		}
		payload := codec.SnapshotValueFromJSON(env.Payload)
		if _, err := a.Keeper().HandleAction(player, client, sessionID, env.ActionType, payload); err != nil {
			log.Printf("action %q from %s rejected: %v", env.ActionType, player, err)
		}
	}

	r := gin.Default()
	r.GET("/arena/:instance/schema", transport.AdminAuthMiddleware(), func(c *gin.Context) {
		land := ids.LandID{LandType: demoland.LandTypeName, InstanceID: c.Param("instance")}
		_, adapter, err := reg.GetOrCreate(land, cfg)
		if err != nil {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		transport.SchemaHandler(adapter)(c)
	})
	r.GET("/arena/:instance/ws", transport.JoinRateLimitMiddleware(), wire.ConnectHandler(resolveAdapter, anonymousResolver{}, onAction))

	port := config.EnvOrDefault("PORT", "8080")
	log.Printf("landkeeper listening on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func buildRecorder(recCfg config.Recorder) landkeeper.Recorder {
	if recCfg.DatabaseURL == "" {
		log.Println("DATABASE_URL not set; reevaluation records are kept in an in-memory ring only")
		return recorder.NewRing(recCfg.RingSize)
	}
	pg, err := recorder.ConnectPostgres(context.Background(), recCfg.DatabaseURL)
	if err != nil {
		log.Printf("Warning: recorder database unavailable, falling back to in-memory ring: %v", err)
		return recorder.NewRing(recCfg.RingSize)
	}
	return pg
}
