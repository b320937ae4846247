package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/announcement"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/core/workshop"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	logger := logsvc.NewRollbarLogger(std, core.Conf)
	logger.Enable(!core.Conf.Debug)

	// set up DB
	sdb, err := database.Open(core.Conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	db := sqlx.NewDb(sdb, core.Conf.Database.Engine)
	defer func() { _ = db.Close() }()

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, logger)
	attSvc := attendance.NewService(sqlxrepos.NewAttendanceRepository(db), logger)
	wsSvc := workshop.NewService(sqlxrepos.NewWorkshopRepository(db), usrSvc, mailSvc, logger)
	annSvc := announcement.NewService(sqlxrepos.NewAnnouncementRepository(db))

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Address:         core.Conf.Server.Address(),
			UserSvc:         usrSvc,
			AttendanceSvc:   attSvc,
			WorkshopSvc:     wsSvc,
			AnnouncementSvc: annSvc,
			Logger:          logger,
		},
	)
	app.Start()
}
