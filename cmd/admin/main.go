package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/deshcart/deshcart-backend/internal/catalog"
	"github.com/deshcart/deshcart-backend/internal/gateway"
	"github.com/deshcart/deshcart-backend/internal/inventory"
	"github.com/deshcart/deshcart-backend/internal/orders"
	"github.com/deshcart/deshcart-backend/internal/settlement"
	"github.com/deshcart/deshcart-backend/pkg/config"
	"github.com/deshcart/deshcart-backend/pkg/db"
	"github.com/deshcart/deshcart-backend/pkg/db/models"
	"github.com/deshcart/deshcart-backend/pkg/logger"
	"github.com/deshcart/deshcart-backend/pkg/outbox"
	"github.com/deshcart/deshcart-backend/pkg/security"
)

const tempPasswordLength = 20

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "admin"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "", "command: create-operator|replay-outbox|mark-disputed|release-reservation|restock")
	email := flag.String("email", "", "operator email (for create-operator)")
	operatorID := flag.String("operator", "", "acting operator ID, recorded in the audit log")
	password := flag.String("password", "", "acting operator password (or DESHCART_ADMIN_PASSWORD)")
	eventID := flag.String("event", "", "outbox event ID (for replay-outbox)")
	attemptID := flag.String("attempt", "", "payment attempt ID (for mark-disputed)")
	orderID := flag.String("order", "", "order ID (for release-reservation)")
	sku := flag.String("sku", "", "stock keeping unit (for restock)")
	qty := flag.Int("qty", 0, "units to add to on-hand stock (for restock)")

	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "admin",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx = logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	app := &adminApp{
		cfg:      cfg,
		logg:     logg,
		dbClient: dbClient,
	}

	switch *cmd {
	case "create-operator":
		if *email == "" {
			fail("missing -email for create-operator")
		}
		app.createOperator(ctx, *email)

	case "replay-outbox":
		actor := app.authenticate(ctx, mustUUID(*operatorID, "-operator"), *password)
		app.replayOutbox(ctx, mustUUID(*eventID, "-event"), actor)

	case "mark-disputed":
		actor := app.authenticate(ctx, mustUUID(*operatorID, "-operator"), *password)
		app.markDisputed(ctx, mustUUID(*attemptID, "-attempt"), actor)

	case "release-reservation":
		actor := app.authenticate(ctx, mustUUID(*operatorID, "-operator"), *password)
		app.releaseReservation(ctx, mustUUID(*orderID, "-order"), actor)

	case "restock":
		if *sku == "" {
			fail("missing -sku for restock")
		}
		if *qty <= 0 {
			fail("-qty must be positive for restock")
		}
		actor := app.authenticate(ctx, mustUUID(*operatorID, "-operator"), *password)
		app.restock(ctx, *sku, *qty, actor)

	default:
		fail("unknown -cmd value: " + *cmd)
	}
}

type adminApp struct {
	cfg      *config.Config
	logg     *logger.Logger
	dbClient *db.Client
}

// authenticate loads the acting operator and checks their password before any
// mutating command runs. The verified ID is what lands in the audit log.
func (a *adminApp) authenticate(ctx context.Context, operatorID uuid.UUID, password string) uuid.UUID {
	if password == "" {
		password = os.Getenv("DESHCART_ADMIN_PASSWORD")
	}
	if password == "" {
		fail("missing -password (or DESHCART_ADMIN_PASSWORD)")
	}

	var operator models.Operator
	err := a.dbClient.DB().WithContext(ctx).Where("id = ?", operatorID).First(&operator).Error
	requireResource(ctx, a.logg, "operator lookup", err)

	if !operator.Active {
		fail("operator is deactivated")
	}
	ok, err := security.VerifyPassword(password, operator.PasswordHash)
	requireResource(ctx, a.logg, "password verification", err)
	if !ok {
		fail("invalid operator credentials")
	}
	return operator.ID
}

func (a *adminApp) createOperator(ctx context.Context, email string) {
	tempPassword, err := security.GenerateTempPassword(tempPasswordLength)
	requireResource(ctx, a.logg, "temp password", err)

	hash, err := security.HashPassword(tempPassword, a.cfg.Password)
	requireResource(ctx, a.logg, "password hash", err)

	operator := models.Operator{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	}
	if err := a.dbClient.DB().WithContext(ctx).Create(&operator).Error; err != nil {
		requireResource(ctx, a.logg, "operator insert", err)
	}

	fmt.Println("operator created:", operator.ID)
	fmt.Println("temporary password:", tempPassword)
}

func (a *adminApp) replayOutbox(ctx context.Context, eventID, actor uuid.UUID) {
	repo := outbox.NewRepository(a.dbClient.DB())
	dlqRepo := outbox.NewDLQRepository(a.dbClient.DB())

	entry, err := dlqRepo.FindByEventID(ctx, eventID)
	requireResource(ctx, a.logg, "dlq lookup", err)
	if entry == nil {
		fail("no dead-lettered event with id " + eventID.String())
	}

	err = repo.ResetForReplay(ctx, eventID)
	requireResource(ctx, a.logg, "outbox reset", err)

	err = dlqRepo.DeleteByEventID(ctx, eventID)
	requireResource(ctx, a.logg, "dlq delete", err)

	a.audit(ctx, actor, "replay_outbox", "outbox_event", eventID.String(), map[string]any{
		"error_reason": entry.ErrorReason,
	})
	fmt.Println("event queued for redelivery:", eventID)
}

func (a *adminApp) markDisputed(ctx context.Context, attemptID, actor uuid.UUID) {
	payments := settlement.NewPaymentsRepository(a.dbClient.DB())

	attempt, err := payments.FindAttemptByID(ctx, attemptID)
	requireResource(ctx, a.logg, "attempt lookup", err)

	err = payments.UpdateAttempt(ctx, attempt.ID, map[string]any{"disputed": true})
	requireResource(ctx, a.logg, "attempt update", err)

	a.audit(ctx, actor, "mark_disputed", "payment_attempt", attemptID.String(), map[string]any{
		"order_id": attempt.OrderID.String(),
	})
	fmt.Println("attempt marked disputed:", attemptID)
}

func (a *adminApp) releaseReservation(ctx context.Context, orderID, actor uuid.UUID) {
	settlementSvc := a.buildSettlement(ctx)
	inventoryRepo := inventory.NewRepository(a.dbClient.DB())

	reservation, err := inventoryRepo.FindReservationByOrderForUpdate(ctx, orderID)
	requireResource(ctx, a.logg, "reservation lookup", err)

	released, err := settlementSvc.ExpireReservation(ctx, *reservation)
	requireResource(ctx, a.logg, "reservation release", err)
	if !released {
		fmt.Println("reservation already settled, nothing released")
		return
	}

	a.audit(ctx, actor, "release_reservation", "order", orderID.String(), nil)
	fmt.Println("reservation released for order:", orderID)
}

func (a *adminApp) restock(ctx context.Context, sku string, qty int, actor uuid.UUID) {
	inventoryRepo := inventory.NewRepository(a.dbClient.DB())

	err := inventoryRepo.AdjustOnHand(ctx, sku, qty)
	requireResource(ctx, a.logg, "stock adjustment", err)

	a.audit(ctx, actor, "restock", "inventory_item", sku, map[string]any{"qty": qty})
	fmt.Printf("added %d units to %s\n", qty, sku)
}

func (a *adminApp) buildSettlement(ctx context.Context) settlement.Service {
	catalogSvc, err := catalog.NewService(catalog.NewRepository(a.dbClient.DB()))
	requireResource(ctx, a.logg, "catalog service", err)

	inventorySvc, err := inventory.NewService(inventory.NewRepository(a.dbClient.DB()))
	requireResource(ctx, a.logg, "inventory service", err)

	orderRepo := orders.NewRepository(a.dbClient.DB())
	ordersSvc, err := orders.NewService(orderRepo, a.logg)
	requireResource(ctx, a.logg, "orders service", err)

	gateways, err := gateway.NewRegistry(a.cfg.Gateways)
	requireResource(ctx, a.logg, "gateway registry", err)

	emitter := outbox.NewService(outbox.NewRepository(a.dbClient.DB()), a.logg)

	settlementSvc, err := settlement.NewService(
		a.dbClient,
		catalogSvc,
		inventorySvc,
		ordersSvc,
		orderRepo,
		settlement.NewPaymentsRepository(a.dbClient.DB()),
		gateways,
		emitter,
		nil,
		a.cfg.Checkout,
		a.logg,
	)
	requireResource(ctx, a.logg, "settlement service", err)
	return settlementSvc
}

func (a *adminApp) audit(ctx context.Context, actor uuid.UUID, action, targetType, targetID string, detail map[string]any) {
	entry := models.AuditLogEntry{
		ID:         uuid.New(),
		OperatorID: actor,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
	}
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err == nil {
			entry.Detail = raw
		}
	}
	if err := a.dbClient.DB().WithContext(ctx).Create(&entry).Error; err != nil {
		a.logg.Error(ctx, "failed to write audit entry", err)
	}
}

func mustUUID(value, flagName string) uuid.UUID {
	if value == "" {
		fail("missing " + flagName)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		fail("invalid " + flagName + ": " + err.Error())
	}
	return id
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
