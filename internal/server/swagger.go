package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title a11yscan API
// @version 0.1
// @description Start accessibility scans, follow their progress, read remediation reports and apply automatic fixes.
// @contact.name a11yscan Maintainers
// @contact.url https://github.com/raysh454/a11yscan
// @BasePath /
