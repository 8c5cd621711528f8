//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"roomoverlay/internal/capture"
	"roomoverlay/internal/config"
	"roomoverlay/internal/events"
	"roomoverlay/internal/gesture"
	"roomoverlay/internal/library"
	applog "roomoverlay/internal/log"
	"roomoverlay/internal/media"
	"roomoverlay/internal/scene"
	"roomoverlay/internal/version"
	"roomoverlay/internal/workspace"
)

// frameInterval paces the scene loop at roughly 60 Hz.
const frameInterval = 16 * time.Millisecond

// Run opens the room preview window for ws and blocks until it closes.
// Gesture settings are reloaded whenever configPath changes.
func Run(ws *workspace.Workspace, configPath string) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.Version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fyneApp := app.NewWithID("roomoverlay")
	w := fyneApp.NewWindow("Room Overlay")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1200)
	winH := prefs.IntWithFallback("window.height", 800)
	if winW < 640 {
		winW = 640
	}
	if winH < 480 {
		winH = 480
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	sc := scene.New(ws.Layout, ws.Scene)
	defer sc.Close()
	rc := NewRoomCanvas(sc)
	status := widget.NewLabel("Ready")
	setStatus := func(msg string) { fyne.Do(func() { status.SetText(msg) }) }

	// Library column.
	var items []library.Item
	libList := widget.NewList(
		func() int { return len(items) },
		func() fyne.CanvasObject { return widget.NewLabel("item") },
		func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(items[i].Label) },
	)
	refreshLibrary := func() {
		items = ws.Library.List(ctx)
		libList.Refresh()
	}
	libList.OnSelected = func(i widget.ListItemID) {
		if i < 0 || i >= len(items) {
			return
		}
		id := sc.Add(items[i].ID)
		l.Info("add object", slog.String("asset", items[i].ID), slog.String("id", id))
		status.SetText("Added " + items[i].Label)
		libList.UnselectAll()
	}
	libSub := ws.Bus.Subscribe(events.LibraryUpdated, func(string, any) { fyne.Do(refreshLibrary) })
	defer libSub.Remove()
	refreshLibrary()

	// Camera: a folder of stills stands in for the device list.
	var sess *media.Session
	var cams []media.DeviceInfo
	camSelect := widget.NewSelect(nil, nil)
	camSelect.PlaceHolder = "No camera"
	camSelect.OnChanged = func(label string) {
		if sess == nil {
			return
		}
		for _, c := range cams {
			if c.Label != label {
				continue
			}
			go func(id string) {
				if err := sess.Switch(ctx, media.ForDevice(id)); err != nil {
					if msg := media.UserMessage(err); msg != "" {
						setStatus(msg)
					}
					return
				}
				img, err := sess.Frame()
				if err != nil {
					setStatus(media.UserMessage(err))
					return
				}
				rc.SetBackground(img)
				setStatus("Camera: " + label)
			}(c.ID)
			return
		}
	}
	openCameras := func(dir string) {
		stills, err := media.StillsFromDir(dir)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		list, err := media.Cameras(ctx, stills)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		if sess != nil {
			sess.Stop()
		}
		sess = media.NewSession(stills)
		cams = list
		labels := make([]string, 0, len(list))
		for _, c := range list {
			labels = append(labels, c.Label)
		}
		camSelect.SetOptions(labels)
		if len(labels) > 0 {
			camSelect.SetSelected(labels[0])
		}
	}
	defer func() {
		if sess != nil {
			sess.Stop()
		}
	}()

	// Toolbar actions.
	rotate := widget.NewCheck("Rotate", func(on bool) { sc.SetRotateMode(on) })
	rotate.SetChecked(sc.RotateMode())
	del := widget.NewButton("Delete", func() {
		if id := sc.Selected(); id != "" {
			sc.Remove(id)
		}
	})
	undoBtn := widget.NewButton("Undo", func() {
		if !ws.Layout.Undo() {
			status.SetText("Nothing to undo")
		}
	})
	redoBtn := widget.NewButton("Redo", func() { ws.Layout.Redo() })
	save := widget.NewButton("Save", func() {
		if err := ws.Commit(ctx); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Layout saved")
	})
	saveAs := widget.NewButton("Save As…", func() {
		dialog.ShowEntryDialog("Save layout", "Name", func(name string) {
			nl, err := ws.Layouts.SaveCurrent(ctx, name, ws.Layout.Snapshot().Objects)
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			status.SetText("Saved layout " + nl.Name)
		}, w)
	})
	shoot := widget.NewButton("Capture", func() {
		if err := takeCapture(ctx, ws, sc, rc); err != nil {
			if errors.Is(err, capture.ErrSurfaceNotReady) {
				status.SetText("Preview is not ready yet")
				return
			}
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Capture added to gallery")
	})
	bgBtn := widget.NewButton("Background…", func() {
		dialog.ShowFileOpen(func(rc2 fyne.URIReadCloser, err error) {
			if err != nil || rc2 == nil {
				return
			}
			path := rc2.URI().Path()
			_ = rc2.Close()
			img, err := capture.LoadImage(path)
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			rc.SetBackground(img)
		}, w)
	})
	camBtn := widget.NewButton("Cameras…", func() {
		dialog.ShowFolderOpen(func(u fyne.ListableURI, err error) {
			if err != nil || u == nil {
				return
			}
			openCameras(u.Path())
		}, w)
	})
	clearBg := widget.NewButton("Plain", func() { rc.SetBackground(nil) })

	toolbar := container.NewHBox(rotate, del, undoBtn, redoBtn, save, saveAs, shoot, bgBtn, camBtn, camSelect, clearBg)
	left := container.NewBorder(widget.NewLabelWithStyle("Library", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), nil, nil, nil, libList)
	split := container.NewHSplit(left, rc)
	split.Offset = 0.18
	w.SetContent(container.NewBorder(toolbar, status, nil, nil, split))

	// Config hot reload for the gesture tuning.
	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, config.DefaultDebounce, func(cfg config.AppConfig) {
				sc.SetGestureConfig(gesture.ConfigFromSettings(cfg.Gesture))
				applog.SetLevel(cfg.Logging.Level)
				l.Info("settings reloaded", slog.String("log_level", cfg.Logging.Level))
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				l.Warn("config watch stopped", slog.Any("err", err))
			}
		}()
	}

	fyneApp.Lifecycle().SetOnExitedForeground(sc.FocusLost)

	go func() {
		_ = sc.Run(ctx, frameInterval, func() { fyne.Do(rc.Refresh) })
	}()

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		if err := ws.Commit(ctx); err != nil {
			l.Error("save layout on close failed", slog.Any("err", err))
		}
		cancel()
		w.Close()
	})

	w.ShowAndRun()
	return nil
}

func takeCapture(ctx context.Context, ws *workspace.Workspace, sc *scene.Scene, rc *RoomCanvas) error {
	sz := rc.Size()
	shot, err := capture.Take(sc, int(sz.Width), int(sz.Height), rc.Background(), capture.FormatPNG, time.Now())
	if err != nil {
		return err
	}
	dir, err := ws.CapturesDir()
	if err != nil {
		return err
	}
	if _, err := capture.SaveFile(dir, shot.Data, shot.Format, shot.At); err != nil {
		return err
	}
	if _, err := capture.ToGallery(ctx, ws.Photos, shot.Data, shot.Format, shot.FileName()); err != nil {
		return fmt.Errorf("add to gallery: %w", err)
	}
	ws.Bus.Publish(events.CaptureSaved, shot.Format.String())
	return nil
}
