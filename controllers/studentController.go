package controllers

import (
	"danceschool-backend/billing"
	"danceschool-backend/database"
	"danceschool-backend/middlewares"
	"danceschool-backend/models"
	"danceschool-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type createStudentInput struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phone_number"`
}

func CreateStudent(c *fiber.Ctx) error {
	var input createStudentInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}
	utils.NormalizeDTO(&input)

	student := models.Student{
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		Email:         input.Email,
		PhoneNumber:   input.PhoneNumber,
		PaymentStatus: models.PaymentStatusNoCharges,
		Active:        true,
	}
	if err := database.DB.Create(&student).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not create student")
	}
	return c.Status(fiber.StatusCreated).JSON(student)
}

func GetStudents(c *fiber.Ctx) error {
	var students []models.Student
	if err := database.DB.Order("last_name, first_name").Find(&students).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not list students")
	}
	return c.JSON(fiber.Map{
		"students": students,
		"message":  "success",
	})
}

func GetStudent(c *fiber.Ctx) error {
	var student models.Student
	if err := database.DB.Preload("Notifications").Where("id = ?", c.Params("id")).First(&student).Error; err != nil {
		return billing.E(billing.CodeNotFound, "student not found")
	}
	return c.JSON(student)
}

type updateStudentInput struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phone_number"`
	Active      *bool   `json:"active"`
}

func UpdateStudent(c *fiber.Ctx) error {
	var input updateStudentInput
	if err := middlewares.BindAndValidate(c, &input); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&input)

	updates := utils.UpdatesFromPtrDTO(&input, nil)
	if len(updates) == 0 {
		return billing.E(billing.CodeInvalidArgument, "no fields to update")
	}

	res := database.DB.Model(&models.Student{}).Where("id = ?", c.Params("id")).Updates(updates)
	if res.Error != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not update student")
	}
	if res.RowsAffected == 0 {
		return billing.E(billing.CodeNotFound, "student not found")
	}

	var student models.Student
	database.DB.Where("id = ?", c.Params("id")).First(&student)
	return c.JSON(student)
}
