package rest

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"

	"github.com/goliatone/go-tasks"
)

var errTaskNotFound = goerrors.New("Task could not be found.", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode("TASK_NOT_FOUND")

func errTaskNotAuthorized(action string) *goerrors.Error {
	return goerrors.New("User is not authorized to "+action+" this task.", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode("TASK_NOT_AUTHORIZED")
}

// TasksController handles the owner scoped task CRUD.
type TasksController struct {
	Repo   tasks.RepositoryManager
	Logger tasks.Logger
}

// TaskRequest payload
type TaskRequest struct {
	Title string `json:"title"`
}

// Validate will run validation rules
func (r TaskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
	)
}

func (t *TasksController) List(c *fiber.Ctx) error {
	user := RequestUser(c)
	if user == nil {
		return tasks.ErrRouteNotAuthorized
	}

	records, err := t.Repo.Tasks().ListByOwner(c.UserContext(), user.ID)
	if err != nil {
		return err
	}

	return sendData(c, fiber.StatusOK, records)
}

func (t *TasksController) Create(c *fiber.Ctx) error {
	user := RequestUser(c)
	if user == nil {
		return tasks.ErrRouteNotAuthorized
	}

	payload := new(TaskRequest)
	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	// Owner comes from the authenticated identity; a caller supplied
	// owner value is ignored.
	record := &tasks.Task{
		Title:   payload.Title,
		OwnerID: user.ID,
	}

	record, err := t.Repo.Tasks().Create(c.UserContext(), record)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create task")
	}

	return sendData(c, fiber.StatusCreated, record)
}

func (t *TasksController) Get(c *fiber.Ctx) error {
	record, err := t.loadOwnedTask(c, "access")
	if err != nil {
		return err
	}

	return sendData(c, fiber.StatusOK, record)
}

func (t *TasksController) Update(c *fiber.Ctx) error {
	record, err := t.loadOwnedTask(c, "update")
	if err != nil {
		return err
	}

	payload := new(TaskRequest)
	if err := c.BodyParser(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error())
	}

	record, err = t.Repo.Tasks().UpdateFields(c.UserContext(), record.ID, tasks.TaskUpdate{
		Title: &payload.Title,
	})
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return errTaskNotFound
		}
		return err
	}

	return sendData(c, fiber.StatusOK, record)
}

func (t *TasksController) Delete(c *fiber.Ctx) error {
	record, err := t.loadOwnedTask(c, "delete")
	if err != nil {
		return err
	}

	if err := t.Repo.Tasks().Remove(c.UserContext(), record.ID); err != nil {
		if repository.IsRecordNotFound(err) {
			return errTaskNotFound
		}
		return err
	}

	return sendData(c, fiber.StatusOK, record)
}

// loadOwnedTask resolves the :id parameter and enforces the access
// order: existence first, ownership second. A non owner probing a
// nonexistent id sees the not found error, not the ownership one.
func (t *TasksController) loadOwnedTask(c *fiber.Ctx, action string) (*tasks.Task, error) {
	user := RequestUser(c)
	if user == nil {
		return nil, tasks.ErrRouteNotAuthorized
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, tasks.ErrResourceNotFound
	}

	record, err := t.Repo.Tasks().FindByID(c.UserContext(), id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, errTaskNotFound
		}
		return nil, err
	}

	if !record.IsOwnedBy(user.ID) {
		return nil, errTaskNotAuthorized(action)
	}

	return record, nil
}
