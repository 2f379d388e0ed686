package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/taksh05/Assignment-Portal/internal/dto"
	"github.com/taksh05/Assignment-Portal/internal/model"
)

var (
	readPasswordFunc = term.ReadPassword // 测试中替换

	errHelp = errors.New("已输出帮助信息")
)

// userCreator 由 service.UserService 实现
type userCreator interface {
	Create(ctx context.Context, name, email, password, role string) (*dto.UserResponse, error)
}

type commandLine struct {
	users userCreator
	out   io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "用法:")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL [-role admin|teacher|student] - 创建用户，密码随后输入")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "adduser":
		return cli.addUser(ctx, args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) addUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	name := fs.String("name", "", "用户姓名")
	email := fs.String("email", "", "登录邮箱")
	role := fs.String("role", model.RoleAdmin, "角色: admin、teacher 或 student")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" || strings.TrimSpace(*email) == "" {
		fs.Usage()
		return errHelp
	}

	fmt.Fprint(cli.out, "请输入密码:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return fmt.Errorf("读取密码失败: %w", err)
	}
	if len(pwd) == 0 {
		fs.Usage()
		return errHelp
	}

	user, err := cli.users.Create(ctx, *name, *email, string(pwd), *role)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "已创建用户 %s (%s, %s)\n", user.Email, user.Role, user.ID)
	return nil
}
