package utils

import (
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"runtime"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TraceIDKey TraceID在Gin上下文中的键名
const TraceIDKey = "traceId"

// goroutine local storage for TraceID
var (
	traceIDMap   = make(map[uint64]string)
	traceIDMutex = sync.RWMutex{}
)

// TraceIDWriter 自定义Writer，拦截标准log输出并插入TraceID
type TraceIDWriter struct {
	originalWriter io.Writer
	timeRegex      *regexp.Regexp
}

func NewTraceIDWriter(originalWriter io.Writer) *TraceIDWriter {
	return &TraceIDWriter{
		originalWriter: originalWriter,
		// 匹配Go标准log的时间戳格式：2025/07/12 11:24:30
		timeRegex: regexp.MustCompile(`^(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2})\s`),
	}
}

func (w *TraceIDWriter) Write(p []byte) (n int, err error) {
	logLine := string(p)

	traceID := GetTraceID()
	if traceID != "" && w.timeRegex.MatchString(logLine) {
		logLine = w.timeRegex.ReplaceAllString(logLine, fmt.Sprintf("$1 【%s】", traceID))
	}

	return w.originalWriter.Write([]byte(logLine))
}

// GenerateTraceID 生成TraceID
func GenerateTraceID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%d", getGoroutineID())
	}
	return fmt.Sprintf("%x", bytes)
}

// 获取当前goroutine ID
func getGoroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]

	// stack trace首行格式: "goroutine 123 [running]:"
	var gid uint64
	fmt.Sscanf(string(b), "goroutine %d ", &gid)
	return gid
}

// SetTraceID 设置当前goroutine的TraceID
func SetTraceID(traceID string) {
	gid := getGoroutineID()
	traceIDMutex.Lock()
	traceIDMap[gid] = traceID
	traceIDMutex.Unlock()
}

// GetTraceID 获取当前goroutine的TraceID
func GetTraceID() string {
	gid := getGoroutineID()
	traceIDMutex.RLock()
	traceID := traceIDMap[gid]
	traceIDMutex.RUnlock()
	return traceID
}

// ClearTraceID 清理当前goroutine的TraceID
func ClearTraceID() {
	gid := getGoroutineID()
	traceIDMutex.Lock()
	delete(traceIDMap, gid)
	traceIDMutex.Unlock()
}

// TraceIDHook logrus钩子，将TraceID附加到结构化字段
type TraceIDHook struct{}

func (hook *TraceIDHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *TraceIDHook) Fire(entry *logrus.Entry) error {
	if traceID := GetTraceID(); traceID != "" {
		entry.Data[TraceIDKey] = traceID
	}
	return nil
}

// InitTraceIDSystem 初始化TraceID日志系统
// 标准log包和logrus共用同一个带TraceID的Writer
func InitTraceIDSystem() {
	traceIDWriter := NewTraceIDWriter(os.Stdout)
	log.SetOutput(traceIDWriter)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
		DisableColors:   true,
	})
	logrus.AddHook(&TraceIDHook{})
	logrus.SetOutput(traceIDWriter)

	log.Printf("TraceID系统初始化完成")
}

// TraceIDMiddleware Gin中间件：TraceID处理
func TraceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 优先沿用请求头中的TraceID，便于跨服务串联
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = GenerateTraceID()
		}

		SetTraceID(traceID)
		c.Set(TraceIDKey, traceID)
		c.Header("X-Trace-ID", traceID)

		c.Next()

		ClearTraceID()
	}
}

// GetTraceIDFromGin 从Gin上下文获取TraceID
func GetTraceIDFromGin(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		return traceID.(string)
	}
	return ""
}
