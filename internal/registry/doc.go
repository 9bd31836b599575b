// Package registry содержит реестр артефактов одного запуска.
//
// Реестр фиксирует манифест (порядок имён из первой генерации) и ведёт
// append-only запись валидированных артефактов. Все выборки — имена
// невалидных, частичный результат, итоговый список — сохраняют порядок
// манифеста. Сверка батчей починки (MergeFixed) возвращает ровно один
// артефакт на каждое имя манифеста либо громко падает, если батч
// невозможно сверить однозначно.
package registry
