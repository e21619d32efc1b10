package main

import (
	"github.com/gin-gonic/gin"

	"nexora-forum/apps/thread-service/dao"
	"nexora-forum/apps/thread-service/handler"
	"nexora-forum/apps/thread-service/model"
	"nexora-forum/apps/thread-service/service"
	"nexora-forum/pkg/server"
)

func main() {
	// 创建应用程序
	app := server.NewApplication("thread-service")

	// 启用HTTP和gRPC服务器（gRPC只承载标准健康检查）
	app.EnableHTTP()
	app.EnableGRPC()

	// 初始化PostgreSQL连接
	postgreSQL := app.GetPostgreSQL()

	// 自动迁移数据库表结构（questions 表由 question-service 拥有，这里不迁移）
	if err := postgreSQL.AutoMigrate(
		&model.Comment{},
		&model.CommentVote{},
	); err != nil {
		panic("Failed to migrate database: " + err.Error())
	}

	// 初始化DAO层
	threadDAO := dao.NewThreadDAO(postgreSQL)
	voteDAO := dao.NewVoteDAO(postgreSQL)
	questionDAO := dao.NewQuestionDAO(postgreSQL)

	// 初始化Service层
	svc := service.NewService(threadDAO, voteDAO, questionDAO,
		app.GetRedisClient(), app.GetKafkaProducer(), app.GetLogger())

	// 初始化Handler
	httpHandler := handler.NewHTTPHandler(svc, app.GetLogger())

	// 注册HTTP路由
	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		httpHandler.RegisterRoutes(engine)
	})

	// 运行应用程序
	if err := app.Run(); err != nil {
		panic(err)
	}
}
