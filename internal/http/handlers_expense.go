package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const ownerKey = "owner"

// requireOwner resolves the caller's owner key before any data access.
func (s *Server) requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, err := s.identity.Resolve(c.Request)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func ownerOf(c *gin.Context) string {
	return c.GetString(ownerKey)
}

func (s *Server) handleListExpenses(c *gin.Context) {
	expenses, err := s.expenses.List(c.Request.Context(), ownerOf(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newExpenseList(expenses))
}

func (s *Server) handleCreateExpense(c *gin.Context) {
	var req expenseRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	in, err := req.toNewExpense()
	if err != nil {
		s.writeError(c, err)
		return
	}

	created, err := s.expenses.Add(c.Request.Context(), ownerOf(c), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newExpenseResponse(created))
}

func (s *Server) handleUpdateExpense(c *gin.Context) {
	var req expenseRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		s.writeError(c, err)
		return
	}

	updated, err := s.expenses.Update(c.Request.Context(), ownerOf(c), c.Param("id"), patch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newExpenseResponse(updated))
}

func (s *Server) handleDeleteExpense(c *gin.Context) {
	if err := s.expenses.Delete(c.Request.Context(), ownerOf(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Msg: "Expense removed"})
}

func (s *Server) handleSummary(c *gin.Context) {
	totals, err := s.expenses.Summary(c.Request.Context(), ownerOf(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTotalList(totals))
}
