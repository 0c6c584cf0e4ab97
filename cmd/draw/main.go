// draw is a headless client: it joins a canvas, replays a scripted
// rectangle gesture, keeps reconciling incoming strokes for a while,
// and writes the resulting picture to a PNG.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/Shubbu03/illustrations/client"
	"github.com/Shubbu03/illustrations/domain"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "websocket endpoint")
	httpURL := flag.String("http", "http://localhost:8080", "HTTP endpoint for the shape fetch")
	token := flag.String("token", "", "bearer token")
	slug := flag.String("slug", "demo", "canvas slug to join")
	out := flag.String("out", "canvas.png", "output PNG path")
	wait := flag.Duration("wait", 3*time.Second, "how long to watch for peer strokes")
	flag.Parse()

	if *token == "" {
		return errors.New("a -token is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *wait+10*time.Second)
	defer cancel()

	sock, err := client.Dial(ctx, *serverURL, *token)
	if err != nil {
		return err
	}
	defer sock.Close()

	frames := make(chan domain.Frame, 64)
	go func() {
		err := sock.Listen(ctx, func(frame domain.Frame) {
			frames <- frame
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("listen ended", "error", err)
		}
		close(frames)
	}()

	if err := sock.JoinRoom(*slug); err != nil {
		return err
	}

	roomID, err := awaitJoin(frames)
	if err != nil {
		return err
	}
	slog.Info("joined", "slug", *slug, "roomID", roomID)

	canvas := client.NewGGCanvas(1280, 720)
	engine := client.NewEngine(roomID, canvas, sock)

	baseline, err := client.FetchShapes(ctx, *httpURL, roomID)
	if err != nil {
		return err
	}
	engine.LoadBaseline(baseline)

	engine.SetTool(client.ToolRectangle)
	engine.PointerDown(10, 10)
	engine.PointerMove(35, 25)
	engine.PointerUp(60, 40)

	deadline := time.After(*wait)
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return errors.New("connection closed")
			}
			engine.OnFrame(frame)
		case <-deadline:
			if err := canvas.SavePNG(*out); err != nil {
				return err
			}
			slog.Info("saved", "path", *out, "shapes", len(engine.Shapes()))
			return nil
		}
	}
}

func awaitJoin(frames <-chan domain.Frame) (int64, error) {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return 0, errors.New("connection closed before join ack")
			}
			switch frame.Type {
			case domain.FrameJoinedRoom:
				return strconv.ParseInt(frame.RoomID, 10, 64)
			case domain.FrameError:
				return 0, errors.New(frame.Message)
			}
		case <-timeout:
			return 0, errors.New("no joined_room ack")
		}
	}
}
