package controllers

import (
	"fmt"

	"danceschool-backend/billing"
	"danceschool-backend/database"
	"danceschool-backend/middlewares"
	"danceschool-backend/models"
	"danceschool-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type classInput struct {
	Name            string `json:"name" validate:"required"`
	Description     string `json:"description"`
	InstructorName  string `json:"instructor_name"`
	MonthlyFeeCents int64  `json:"monthly_fee_cents" validate:"gte=0"`
	WeekdaySchedule string `json:"weekday_schedule"`
}

// CreateClasses accepts a batch so the front desk can load a semester's
// catalogue in one call.
func CreateClasses(c *fiber.Ctx) error {
	var inputs []classInput
	if err := c.BodyParser(&inputs); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	tx := database.DB.Begin()
	var created []models.DanceClass

	for i := range inputs {
		if err := middlewares.ValidateStruct(&inputs[i]); err != nil {
			tx.Rollback()
			return err
		}
		utils.NormalizeDTO(&inputs[i])

		class := models.DanceClass{
			Name:            inputs[i].Name,
			Description:     inputs[i].Description,
			InstructorName:  inputs[i].InstructorName,
			MonthlyFeeCents: inputs[i].MonthlyFeeCents,
			WeekdaySchedule: inputs[i].WeekdaySchedule,
			Active:          true,
		}
		if err := tx.Create(&class).Error; err != nil {
			tx.Rollback()
			return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("could not create class at index %d", i))
		}
		created = append(created, class)
	}

	tx.Commit()
	return c.Status(fiber.StatusCreated).JSON(created)
}

func GetClasses(c *fiber.Ctx) error {
	var classes []models.DanceClass
	if err := database.DB.Where("active = ?", true).Order("name").Find(&classes).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not list classes")
	}
	return c.JSON(fiber.Map{
		"classes": classes,
		"message": "success",
	})
}

type updateClassInput struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	InstructorName  *string `json:"instructor_name"`
	MonthlyFeeCents *int64  `json:"monthly_fee_cents"`
	WeekdaySchedule *string `json:"weekday_schedule"`
	Active          *bool   `json:"active"`
}

func UpdateClass(c *fiber.Ctx) error {
	var input updateClassInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&input)

	updates := utils.UpdatesFromPtrDTO(&input, nil)
	if len(updates) == 0 {
		return billing.E(billing.CodeInvalidArgument, "no fields to update")
	}

	res := database.DB.Model(&models.DanceClass{}).Where("id = ?", c.Params("id")).Updates(updates)
	if res.Error != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not update class")
	}
	if res.RowsAffected == 0 {
		return billing.E(billing.CodeNotFound, "class not found")
	}

	var class models.DanceClass
	database.DB.Where("id = ?", c.Params("id")).First(&class)
	return c.JSON(class)
}
