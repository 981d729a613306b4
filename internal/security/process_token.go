package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// processSnapshotVersion is the payload schema version. Tokens minted with a
// different version are rejected outright instead of best-effort parsed.
const processSnapshotVersion = 1

// ErrProcessTokenInvalid is the single failure every decode problem collapses
// to: bad signature, malformed payload, wrong schema version, or expiry. The
// caller's only recovery is to recompute.
var ErrProcessTokenInvalid = errors.New("process token invalid or expired")

// ProcessSnapshot is the complete frozen state of one in-flight collection
// process. It lives only inside the signed token; the server keeps no copy
// between compute and commit.
type ProcessSnapshot struct {
	UserID      int `json:"uid"`
	ContainerID int `json:"contenedor_id"`
	WasteTypeID int `json:"id_tipo_residuo"`

	TotalLb     float64 `json:"total_en_libras"`
	FillPercent float64 `json:"porcentaje_llenado"`

	CostRecordID int     `json:"costo_vigente_id"`
	CostPerLb    float64 `json:"costo_por_libra_aplicado"`
	TotalCost    float64 `json:"total_costo_q"`
	CostSource   string  `json:"fuente_costo"`

	ReadingID    int       `json:"lectura_id"`
	ReadingValue float64   `json:"lectura_sensor_lb"`
	ReadingAt    time.Time `json:"lectura_fecha_hora"`
}

type processClaims struct {
	Version  int             `json:"ver"`
	Snapshot ProcessSnapshot `json:"proceso"`
	jwt.RegisteredClaims
}

// ProcessTokenCodec signs and verifies process tokens. The secret and TTL are
// fixed at construction.
type ProcessTokenCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewProcessTokenCodec(secret string, ttl time.Duration) *ProcessTokenCodec {
	return &ProcessTokenCodec{secret: []byte(secret), ttl: ttl}
}

func (c *ProcessTokenCodec) Encode(snapshot ProcessSnapshot) (string, error) {
	now := time.Now()
	claims := processClaims{
		Version:  processSnapshotVersion,
		Snapshot: snapshot,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			Subject:   fmt.Sprint(snapshot.UserID),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign process token: %w", err)
	}
	return signed, nil
}

// Decode fails closed: any problem yields ErrProcessTokenInvalid, never a
// partially trusted payload.
func (c *ProcessTokenCodec) Decode(tokenStr string) (*ProcessSnapshot, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &processClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, ErrProcessTokenInvalid
	}

	claims, ok := token.Claims.(*processClaims)
	if !ok || !token.Valid || claims.Version != processSnapshotVersion {
		return nil, ErrProcessTokenInvalid
	}
	return &claims.Snapshot, nil
}
