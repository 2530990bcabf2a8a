package api

import (
	"context"
	"fmt"
	"net/url"

	"MeloFM/model"
)

// Task control: pause/resume/cancel a background job by id. The
// acknowledgement here is only half the story; the resulting state
// change arrives as a task_progress event on the push channel.

// PauseTask 暂停任务
func (c *Client) PauseTask(ctx context.Context, taskID string) (*model.TaskControlResponse, error) {
	return c.taskControl(ctx, taskID, "pause")
}

// ResumeTask 恢复任务
func (c *Client) ResumeTask(ctx context.Context, taskID string) (*model.TaskControlResponse, error) {
	return c.taskControl(ctx, taskID, "resume")
}

// CancelTask 取消任务
func (c *Client) CancelTask(ctx context.Context, taskID string) (*model.TaskControlResponse, error) {
	return c.taskControl(ctx, taskID, "cancel")
}

func (c *Client) taskControl(ctx context.Context, taskID, action string) (*model.TaskControlResponse, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task control %s: empty task id", action)
	}

	var result model.TaskControlResponse
	path := fmt.Sprintf("/api/tasks/%s/%s", url.PathEscape(taskID), action)
	if err := c.postJSON(ctx, path, nil, &result); err != nil {
		return nil, fmt.Errorf("task control %s: %w", action, err)
	}
	return &result, nil
}
