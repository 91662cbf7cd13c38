package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"lingua-go/internal/config"
	"lingua-go/internal/logger"
	"lingua-go/internal/models"
	"lingua-go/internal/storage"
)

func usage() {
	fmt.Println("使用方法:")
	fmt.Println("  ./admin show-user <userID|email>   - 显示用户资料和好友")
	fmt.Println("  ./admin list-requests <userID>     - 列出用户待处理的好友请求")
}

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fatal("无法加载配置: %v", err)
	}
	log := logger.New("warn", cfg.AppEnv)
	db, err := storage.InitDB(cfg.Database, log, "warn")
	if err != nil {
		fatal("无法初始化数据库: %v", err)
	}

	ctx := context.Background()
	userRepo := storage.NewGormUserRepository(db)
	friendReqRepo := storage.NewGormFriendRequestRepository(db)

	switch os.Args[1] {
	case "show-user":
		showUser(ctx, userRepo, os.Args[2])
	case "list-requests":
		listRequests(ctx, friendReqRepo, os.Args[2])
	default:
		usage()
		fatal("未知命令: %s", os.Args[1])
	}
}

func showUser(ctx context.Context, repo storage.UserRepository, ref string) {
	var (
		user *models.User
		err  error
	)
	if strings.Contains(ref, "@") {
		user, err = repo.GetByEmail(ctx, ref)
	} else {
		user, err = repo.GetByID(ctx, ref)
	}
	if err != nil {
		fatal("查找用户失败: %v", err)
	}

	fmt.Printf("用户 %s 信息:\n", user.ID)
	fmt.Println("--------------------------------------")
	fmt.Printf("姓名: %s\n", user.FullName)
	fmt.Printf("邮箱: %s\n", user.Email)
	fmt.Printf("语言: %s -> %s\n", user.NativeLanguage, user.LearningLanguage)
	fmt.Printf("已完成引导: %v\n", user.IsOnboarded)
	fmt.Printf("创建时间: %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))

	friends, err := repo.GetSummariesByIDs(ctx, user.Friends)
	if err != nil {
		fmt.Printf("获取好友失败: %v\n", err)
		return
	}
	fmt.Printf("好友数量: %d\n", len(friends))
	for i, f := range friends {
		fmt.Printf("#%d %s (%s)\n", i+1, f.FullName, f.ID)
	}
}

func listRequests(ctx context.Context, repo storage.FriendRequestRepository, userID string) {
	incoming, err := repo.ListIncomingPending(ctx, userID)
	if err != nil {
		fatal("获取收到的请求失败: %v", err)
	}
	outgoing, err := repo.ListOutgoingPending(ctx, userID)
	if err != nil {
		fatal("获取发出的请求失败: %v", err)
	}

	fmt.Printf("收到的请求 (%d):\n", len(incoming))
	for _, r := range incoming {
		fmt.Printf("  %s 来自 %s, %s\n", r.ID, r.SenderID, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("发出的请求 (%d):\n", len(outgoing))
	for _, r := range outgoing {
		fmt.Printf("  %s 发给 %s, %s\n", r.ID, r.RecipientID, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
