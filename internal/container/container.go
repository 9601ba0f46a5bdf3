package container

import (
	"database/sql"

	auditLogRepo "fieldstock/internal/auditlog"
	"fieldstock/internal/consumption"
	"fieldstock/internal/integrations/countsheet"
	"fieldstock/internal/items"
	"fieldstock/internal/ledger"
	"fieldstock/internal/locations"
	"fieldstock/internal/receiving"
	"fieldstock/internal/reconciliation"
	"fieldstock/internal/repository"
	"fieldstock/internal/routing"
	"fieldstock/internal/users"
	"fieldstock/pkg/auditlog"
	"fieldstock/pkg/security"

	"go.uber.org/zap"
)

type Container struct {
	Repository            *repository.Repository
	AuditLog              *auditlog.Auditlog
	LoginHandler          *security.LoginHandler
	LocationHandler       *locations.LocationHandler
	LedgerHandler         *ledger.LedgerHandler
	ReceivingHandler      *receiving.ReceivingHandler
	ConsumptionHandler    *consumption.ConsumptionHandler
	ReconciliationHandler *reconciliation.ReconciliationHandler
	AuditLogHandler       *auditLogRepo.AuditLogHandler

	// CountSheetHandler is nil when no Google credentials are configured.
	CountSheetHandler *countsheet.CountSheetHandler
}

func NewAppContainer(db *sql.DB, log *zap.Logger) *Container {
	repo := repository.NewRepository(db)
	logRepo := auditLogRepo.NewRepository(repo)
	auditLog := auditlog.NewAuditLog(logRepo)

	userRepo := users.NewRepository(repo)
	actorLoader := routing.NewActorLoader(userRepo)

	itemRepo := items.NewRepository(repo)
	locationRepo := locations.NewLocationRepository(repo)
	locationService := locations.NewLocationService(locationRepo)
	locationHandler := locations.NewLocationHandler(locationService, locationRepo)

	movementRepo := ledger.NewMovementRepository(repo)
	ledgerService := ledger.NewLedgerService(repo, movementRepo, log)
	transferService := ledger.NewTransferService(ledgerService, itemRepo, locationRepo, auditLog)
	ledgerHandler := ledger.NewLedgerHandler(transferService, ledgerService, movementRepo, actorLoader)

	orderRepo := receiving.NewOrderRepository(repo)
	receiveService := receiving.NewReceiveService(repo, orderRepo, itemRepo, locationRepo, ledgerService, auditLog, log)
	receivingHandler := receiving.NewReceivingHandler(receiveService, actorLoader)

	consumptionRepo := consumption.NewRepository(repo)
	consumptionService := consumption.NewConsumptionService(repo, consumptionRepo, itemRepo, locationRepo, ledgerService, auditLog)
	consumptionHandler := consumption.NewConsumptionHandler(consumptionService, actorLoader)

	reconciliationRepo := reconciliation.NewRepository(repo)
	integrityService := reconciliation.NewIntegrityService(locationService, itemRepo, movementRepo, reconciliationRepo)
	repairService := reconciliation.NewRepairService(reconciliationRepo, auditLog, log)
	baselineService := reconciliation.NewBaselineService(reconciliationRepo, ledgerService, movementRepo, itemRepo, locationService, auditLog, log)
	reconciliationHandler := reconciliation.NewReconciliationHandler(integrityService, repairService, baselineService, ledgerService, actorLoader)

	var countSheetHandler *countsheet.CountSheetHandler
	countSheetService, err := countsheet.NewCountSheetService()
	if err != nil {
		log.Warn("count sheet import disabled", zap.Error(err))
	} else {
		countSheetHandler = countsheet.NewCountSheetHandler(countSheetService, baselineService, itemRepo, locationRepo, actorLoader)
	}

	return &Container{
		Repository:            repo,
		AuditLog:              auditLog,
		LoginHandler:          security.NewLoginHandler(repo),
		LocationHandler:       locationHandler,
		LedgerHandler:         ledgerHandler,
		ReceivingHandler:      receivingHandler,
		ConsumptionHandler:    consumptionHandler,
		ReconciliationHandler: reconciliationHandler,
		AuditLogHandler:       auditLogRepo.NewHandler(logRepo),
		CountSheetHandler:     countSheetHandler,
	}
}
