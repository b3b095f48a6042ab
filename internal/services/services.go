package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/planfold/planfold/internal/config"
	"github.com/planfold/planfold/internal/db"
	"github.com/planfold/planfold/internal/pubsub"
	"github.com/planfold/planfold/internal/services/authz"
	milestone2 "github.com/planfold/planfold/internal/services/milestone"
	organization2 "github.com/planfold/planfold/internal/services/organization"
	project2 "github.com/planfold/planfold/internal/services/project"
	task2 "github.com/planfold/planfold/internal/services/task"
	user2 "github.com/planfold/planfold/internal/services/user"
)

type Services struct {
	User         *user2.UserService
	Organization *organization2.OrganizationService
	Project      *project2.ProjectService
	Milestone    *milestone2.MilestoneService
	Task         *task2.TaskService
	Authz        *authz.Evaluator

	PubSub *pubsub.PubSub
}

func NewServices(conf *config.Config) *Services {
	dbconn := db.NewConn(conf)

	orgRepo := organization2.NewOrganizationRepo(dbconn)
	projectRepo := project2.NewProjectRepo(dbconn)

	var dir authz.Directory = authz.NewDirectory(orgRepo, projectRepo)

	ps := pubsub.NewPubSub(conf)

	// With redis configured, membership lookups are cached per node and kept
	// honest by the database's membership change notifications.
	if conf.REDIS_ADDR != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     conf.REDIS_ADDR,
			Password: conf.REDIS_PASSWORD,
		})

		cached := authz.NewCachedDirectory(dir, client)
		dir = cached

		ps.Subscribe(func(event pubsub.MembershipChangeEvent) {
			ctx := context.Background()
			if event.Operation == "RELOAD" {
				cached.InvalidateAll(ctx)
				return
			}

			orgID, err := uuid.Parse(event.OrganizationID)
			if err != nil {
				slog.Warn("Invalid organization ID in membership event", slog.String("value", event.OrganizationID))
				return
			}
			userID, err := uuid.Parse(event.UserID)
			if err != nil {
				slog.Warn("Invalid user ID in membership event", slog.String("value", event.UserID))
				return
			}

			cached.Invalidate(ctx, orgID, userID)
		})

		slog.Info("Membership cache enabled", slog.String("redis", conf.REDIS_ADDR))
	}

	if err := ps.Start(); err != nil {
		slog.Warn("Failed to start membership change listener", slog.Any("error", err))
	}

	return &Services{
		User:         user2.NewUserService(user2.NewUserRepo(dbconn)),
		Organization: organization2.NewOrganizationService(orgRepo),
		Project:      project2.NewProjectService(projectRepo),
		Milestone:    milestone2.NewMilestoneService(milestone2.NewMilestoneRepo(dbconn)),
		Task:         task2.NewTaskService(task2.NewTaskRepo(dbconn)),
		Authz:        authz.NewEvaluator(dir),
		PubSub:       ps,
	}
}
